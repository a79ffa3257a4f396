// Package web provides the HTTP API for courses, rosters and bulk imports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
	webmw "github.com/JonMunkholm/gradebook/internal/web/middleware"
)

// CourseManager is the course API the handlers need.
type CourseManager interface {
	ListCourses(ctx context.Context, professorID string, forceRefresh bool) ([]core.Course, error)
	CreateCourse(ctx context.Context, in core.CourseInput) (*core.Course, error)
	UpdateCourse(ctx context.Context, id string, in core.CourseInput) (*core.Course, error)
	DeleteCourse(ctx context.Context, id string) error
}

// RosterManager is the roster API the handlers need.
type RosterManager interface {
	Roster(ctx context.Context, subjectCode string) ([]core.Student, error)
	CreateStudent(ctx context.Context, row core.BulkImportRow, subjectCode string) (*core.Student, core.Outcome, error)
	RemoveStudent(ctx context.Context, studentID, subjectCode string) error
	ArchiveSubject(ctx context.Context, studentID, subjectCode string) error
}

// ImportManager runs and tracks background imports.
type ImportManager interface {
	Start(ctx context.Context, subjectCode, fileName string, rows []core.BulkImportRow) (string, error)
	Status(id string) (core.ImportStatus, error)
	Subscribe(id string) (<-chan core.ImportStatus, error)
	Cancel(id string) error
	List() []core.ImportStatus
	Limiter() *core.ImportLimiter
}

// AlertStore lists and dismisses user alerts.
type AlertStore interface {
	List() []alert.Alert
	Dismiss(id string) bool
}

// CacheManager invalidates cached fetch results.
type CacheManager interface {
	InvalidateCache(keys ...string)
	ClearCache()
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the server routes to.
type Services struct {
	Courses  CourseManager
	Roster   RosterManager
	Imports  ImportManager
	Alerts   AlertStore
	Cache    CacheManager
	Database Pinger
}

// Server is the HTTP server for the gradebook API.
type Server struct {
	svc     Services
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
	imports *rateLimiter
}

// NewServer creates a Server and registers its routes.
func NewServer(svc Services, cfg *config.Config) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.imports = newRateLimiter(cfg.Rate.ImportLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		// The progress stream outlives the request timeout.
		r.Get("/imports/{importID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/professors/{professorID}/courses", s.handleListCourses)
			r.Post("/courses", s.handleCreateCourse)
			r.Put("/courses/{courseID}", s.handleUpdateCourse)
			r.Delete("/courses/{courseID}", s.handleDeleteCourse)

			r.Get("/subjects/{code}/students", s.handleRoster)
			r.Post("/subjects/{code}/students", s.handleCreateStudent)
			r.Delete("/subjects/{code}/students/{studentID}", s.handleRemoveStudent)
			r.Post("/subjects/{code}/students/{studentID}/archive", s.handleArchiveSubject)

			r.With(s.importRateLimit).Post("/subjects/{code}/imports", s.handleStartImport)
			r.Get("/imports", s.handleListImports)
			r.Get("/imports/{importID}", s.handleImportStatus)
			r.Post("/imports/{importID}/cancel", s.handleCancelImport)

			r.Get("/alerts", s.handleListAlerts)
			r.Delete("/alerts/{alertID}", s.handleDismissAlert)

			r.Post("/cache/invalidate", s.handleInvalidateCache)
			r.Delete("/cache", s.handleClearCache)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background helpers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopLimiters()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) stopLimiters() {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.imports != nil {
		s.imports.stop()
	}
}

func (s *Server) importRateLimit(next http.Handler) http.Handler {
	if s.imports == nil {
		return next
	}
	return s.imports.middleware(next)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows until stop is called.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip and reports whether one was available.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
