// Package fetch coordinates reads from remote collaborators.
//
// An Orchestrator runs producers under caller-chosen operation keys. Each key
// joins four pieces of bookkeeping: the TTL cache entry, the loading flag, the
// last error message, and the cancellation handle of the call in flight.
//
// Producers always take a context; wrap a value that is already available with
// Value. A producer that ignores its context runs to completion after Abort,
// but its result is discarded and the call reports ErrCanceled.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/cache"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/metrics"
)

// DefaultCacheTTL applies when Options.CacheTTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// ErrCanceled is returned when a call was aborted or its context canceled.
// It is never recorded as an error state and never raises an alert.
var ErrCanceled = errors.New("fetch canceled")

// Producer computes the value for an operation key.
type Producer func(ctx context.Context) (any, error)

// Value wraps an already computed value as a Producer.
func Value(v any) Producer {
	return func(context.Context) (any, error) { return v, nil }
}

// Options tune a single fetch. The zero value caches for the orchestrator's
// default TTL and raises an alert on failure.
type Options struct {
	NoCache       bool
	CacheTTL      time.Duration
	ForceRefresh  bool
	SuppressAlert bool

	// Label names the operation in user messages. Defaults to the key.
	Label string

	OnSuccess func(v any)
	OnError   func(err error)
}

// Orchestrator runs producers and tracks per-key state. Safe for concurrent use.
type Orchestrator struct {
	cache      *cache.Cache
	classifier *apperr.Classifier
	defaultTTL time.Duration
	batchLimit int
	sleep      func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	handles map[string]*handle
	loading map[string]struct{}
	errs    map[string]string

	prefetches sync.WaitGroup
}

// handle is the cancellation handle of one call. registered is only
// touched by the goroutine running the call.
type handle struct {
	ctx        context.Context
	cancel     context.CancelFunc
	registered bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultTTL sets the TTL used when Options.CacheTTL is zero.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithBatchConcurrency bounds the goroutines BatchFetch runs at once.
// Zero means unbounded.
func WithBatchConcurrency(n int) Option {
	return func(o *Orchestrator) { o.batchLimit = n }
}

// New creates an Orchestrator over c. Failures are reported through classifier.
func New(c *cache.Cache, classifier *apperr.Classifier, opts ...Option) *Orchestrator {
	if classifier == nil {
		classifier = apperr.NewClassifier(nil, nil)
	}
	o := &Orchestrator{
		cache:      c,
		classifier: classifier,
		defaultTTL: DefaultCacheTTL,
		sleep:      sleepContext,
		handles:    make(map[string]*handle),
		loading:    make(map[string]struct{}),
		errs:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchData returns the value for key, from cache when allowed, otherwise by
// invoking producer. A failure is classified, recorded as the key's error,
// reported to OnError and returned wrapped.
func (o *Orchestrator) FetchData(ctx context.Context, key string, producer Producer, opts Options) (any, error) {
	return o.fetch(ctx, key, producer, opts, nil, func(error) bool { return true })
}

// fetch runs one attempt. h is a handle owned by the caller (retry loops) or
// nil to create and release one here. final reports whether a failure ends
// the call; only a final failure raises an alert and reaches OnError.
func (o *Orchestrator) fetch(ctx context.Context, key string, producer Producer, opts Options, h *handle, final func(error) bool) (any, error) {
	logger := loggerFor(ctx, key)

	if !opts.NoCache && !opts.ForceRefresh {
		if v, ok := o.cache.Get(key); ok {
			logger.Debug("cache hit")
			if opts.OnSuccess != nil {
				opts.OnSuccess(v)
			}
			return v, nil
		}
	}

	if h == nil {
		h = newHandle(ctx)
		defer o.release(key, h)
	}
	if h.registered {
		if !o.resume(key, h) {
			metrics.FetchAttempts.WithLabelValues(metrics.OutcomeCanceled).Inc()
			logger.Debug("fetch superseded")
			return nil, ErrCanceled
		}
	} else {
		o.begin(key, h)
		h.registered = true
	}

	metrics.FetchInflight.Inc()
	v, err := callProducer(h.ctx, producer)
	metrics.FetchInflight.Dec()

	if errors.Is(h.ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		metrics.FetchAttempts.WithLabelValues(metrics.OutcomeCanceled).Inc()
		o.settle(key, h, "", false)
		logger.Debug("fetch canceled")
		return nil, ErrCanceled
	}

	if err == nil {
		metrics.FetchAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
		if !opts.NoCache {
			ttl := opts.CacheTTL
			if ttl <= 0 {
				ttl = o.defaultTTL
			}
			o.cache.Set(key, v, ttl)
		}
		o.settle(key, h, "", false)
		if opts.OnSuccess != nil {
			opts.OnSuccess(v)
		}
		return v, nil
	}

	metrics.FetchAttempts.WithLabelValues(metrics.OutcomeError).Inc()

	last := final(err)
	label := opts.Label
	if label == "" {
		label = key
	}
	msg := o.classifier.Classify(err, label, last && !opts.SuppressAlert)
	o.settle(key, h, msg, true)
	if last && opts.OnError != nil {
		opts.OnError(err)
	}
	return nil, fmt.Errorf("fetch %s: %w", key, err)
}

// callProducer turns a producer panic into an error so the key's bookkeeping
// still settles.
func callProducer(ctx context.Context, producer Producer) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panicked: %v", r)
		}
	}()
	return producer(ctx)
}

func newHandle(parent context.Context) *handle {
	ctx, cancel := context.WithCancel(parent)
	return &handle{ctx: ctx, cancel: cancel}
}

// begin registers h under key, superseding any earlier registration, marks the
// key loading and clears its error.
func (o *Orchestrator) begin(key string, h *handle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.handles[key] = h
	o.loading[key] = struct{}{}
	delete(o.errs, key)
}

// resume marks key loading again for a later attempt of the call owning h.
// It reports false, changing nothing, when a newer call has replaced h or
// h was aborted.
func (o *Orchestrator) resume(key string, h *handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.handles[key] != h {
		return false
	}
	o.loading[key] = struct{}{}
	delete(o.errs, key)
	return true
}

// settle clears the loading flag and optionally records an error, but only
// while h is still the key's current handle.
func (o *Orchestrator) settle(key string, h *handle, msg string, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.handles[key] != h {
		return
	}
	delete(o.loading, key)
	if failed {
		o.errs[key] = msg
	}
}

// release deregisters h if it is still current and frees its context.
func (o *Orchestrator) release(key string, h *handle) {
	o.mu.Lock()
	if o.handles[key] == h {
		delete(o.handles, key)
	}
	o.mu.Unlock()
	h.cancel()
}

// Abort cancels the call registered under key and clears its loading flag.
// A key with nothing in flight is ignored.
func (o *Orchestrator) Abort(key string) {
	o.mu.Lock()
	h, ok := o.handles[key]
	if ok {
		delete(o.handles, key)
		delete(o.loading, key)
	}
	o.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// AbortAll cancels every registered call and clears all loading and error state.
func (o *Orchestrator) AbortAll() {
	o.mu.Lock()
	handles := o.handles
	o.handles = make(map[string]*handle)
	o.loading = make(map[string]struct{})
	o.errs = make(map[string]string)
	o.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
}

// Close aborts everything in flight and waits for prefetches to return.
func (o *Orchestrator) Close() {
	o.AbortAll()
	o.prefetches.Wait()
}

// InvalidateCache removes the given keys from the cache.
func (o *Orchestrator) InvalidateCache(keys ...string) {
	for _, k := range keys {
		o.cache.Delete(k)
	}
}

// ClearCache empties the cache.
func (o *Orchestrator) ClearCache() {
	o.cache.Clear()
}

// IsLoading reports whether a call on key is in flight.
func (o *Orchestrator) IsLoading(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.loading[key]
	return ok
}

// Error returns the last error message recorded for key, or "".
func (o *Orchestrator) Error(key string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errs[key]
}

// LoadingKeys returns the keys currently in flight, sorted.
func (o *Orchestrator) LoadingKeys() []string {
	o.mu.Lock()
	keys := make([]string, 0, len(o.loading))
	for k := range o.loading {
		keys = append(keys, k)
	}
	o.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Prefetch warms the cache for key in the background. Alerts are off;
// failures and panics are logged and dropped.
func (o *Orchestrator) Prefetch(ctx context.Context, key string, producer Producer, opts Options) {
	opts.SuppressAlert = true
	ctx = context.WithoutCancel(ctx)

	o.prefetches.Add(1)
	go func() {
		defer o.prefetches.Done()
		defer func() {
			if r := recover(); r != nil {
				loggerFor(ctx, key).Error("prefetch panicked", "panic", fmt.Sprintf("%v", r), "stacktrace", string(debug.Stack()))
			}
		}()

		if _, err := o.FetchData(ctx, key, producer, opts); err != nil && !errors.Is(err, ErrCanceled) {
			loggerFor(ctx, key).Warn("prefetch failed", "error", err)
		}
	}()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loggerFor(ctx context.Context, key string) *slog.Logger {
	return logging.WithFields(ctx, "key", key)
}
