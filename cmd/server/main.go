package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/cache"
	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/fetch"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/store"
	"github.com/JonMunkholm/gradebook/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env files are ignored; the environment still applies.
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	db := store.New(pool)
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied")
	}

	alerts := alert.NewCenter(cfg.Alerts.MaxRetained)
	classifier := apperr.NewClassifier(alerts, logger)

	fetcher := fetch.New(
		cache.New(cache.WithMaxEntries(cfg.Cache.MaxEntries)),
		classifier,
		fetch.WithDefaultTTL(cfg.Cache.DefaultTTL),
		fetch.WithBatchConcurrency(cfg.Fetch.BatchConcurrency),
	)
	defer fetcher.Close()

	deps := core.Deps{
		Students:    db,
		Courses:     db,
		Enrollments: db,
		State:       db,
		Classifier:  classifier,
		Cache:       fetcher,
	}
	if p := cfg.Import.StudentIDPattern; p != "" {
		if deps.ValidateID, err = core.PatternStudentIDValidator(p); err != nil {
			return err
		}
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	tracker := core.NewImportTracker(deps, limiter, cfg.Import.Timeout, cfg.Import.Retention)
	retry := fetch.RetryPolicy{MaxRetries: cfg.Fetch.MaxRetries, RetryDelay: cfg.Fetch.RetryDelay}

	server := web.NewServer(web.Services{
		Courses:  core.NewCourseService(db, fetcher, classifier, retry),
		Roster:   core.NewRosterService(deps, fetcher),
		Imports:  tracker,
		Alerts:   alerts,
		Cache:    fetcher,
		Database: db,
	}, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first so no new imports start while draining.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if status := limiter.Status(); status.Active > 0 {
		logger.Info("waiting for imports to complete", "active", status.Active)
		if err := limiter.WaitForDrain(shutdownCtx); err != nil {
			logger.Warn("imports did not complete in time, canceling", "error", err)
			tracker.CancelAll()
		} else {
			logger.Info("all imports completed")
		}
	}

	return <-errCh
}
