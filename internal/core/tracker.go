package core

// tracker.go runs bulk imports in the background and lets callers follow them.
//
// Each import gets an ID, a slot from the ImportLimiter and a fresh Importer.
// Subscribers receive ImportStatus updates on buffered channels; slow
// subscribers miss intermediate updates, but the final status is always the
// last value before the channel closes. Finished imports stay queryable for the retention
// period and are then dropped.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/logging"
)

// ErrImportNotFound is returned for unknown or expired import IDs.
var ErrImportNotFound = errors.New("import not found")

const (
	// DefaultImportTimeout bounds one background import.
	DefaultImportTimeout = 10 * time.Minute

	// DefaultImportRetention is how long a finished import stays queryable.
	DefaultImportRetention = 5 * time.Minute

	subscriberBuffer = 10
)

// ImportStatus is a point-in-time view of a tracked import.
type ImportStatus struct {
	ImportID    string           `json:"importId"`
	SubjectCode string           `json:"subjectCode"`
	FileName    string           `json:"fileName,omitempty"`
	RequestedBy string           `json:"requestedBy,omitempty"`
	Phase       Phase            `json:"phase"`
	Progress    Progress         `json:"progress"`
	Result      BulkImportResult `json:"result"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  *time.Time       `json:"finishedAt,omitempty"`
}

// Done reports whether the import reached a terminal phase.
func (s ImportStatus) Done() bool {
	return s.Phase != PhaseRunning && s.Phase != PhaseIdle
}

type activeImport struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	status      ImportStatus
	subscribers []chan ImportStatus
}

func (a *activeImport) snapshot() ImportStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.status
	s.Result = s.Result.clone()
	return s
}

func (a *activeImport) update(fn func(*ImportStatus)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fn(&a.status)
	for _, ch := range a.subscribers {
		s := a.status
		s.Result = s.Result.clone()
		select {
		case ch <- s:
		default:
		}
	}
}

// finish records the terminal status, delivers it to every subscriber and
// closes them. A subscriber with a full buffer loses its oldest queued
// update instead of the final one.
func (a *activeImport) finish(fn func(*ImportStatus)) {
	a.mu.Lock()
	fn(&a.status)
	for _, ch := range a.subscribers {
		s := a.status
		s.Result = s.Result.clone()
		sendLatest(ch, s)
		close(ch)
	}
	a.subscribers = nil
	a.mu.Unlock()

	close(a.done)
}

// sendLatest queues s on ch, discarding queued updates until it fits.
// The caller must be the only sender on ch.
func sendLatest(ch chan ImportStatus, s ImportStatus) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// ImportTracker owns the background imports of the process.
type ImportTracker struct {
	deps      Deps
	limiter   *ImportLimiter
	timeout   time.Duration
	retention time.Duration

	mu        sync.RWMutex
	imports   map[string]*activeImport
	bySubject map[string]string
}

// NewImportTracker creates a tracker. Zero durations select the defaults and
// a nil limiter allows DefaultMaxConcurrentImports.
func NewImportTracker(deps Deps, limiter *ImportLimiter, timeout, retention time.Duration) *ImportTracker {
	if limiter == nil {
		limiter = NewImportLimiter(0, 0)
	}
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}
	if retention <= 0 {
		retention = DefaultImportRetention
	}
	return &ImportTracker{
		deps:      deps.withDefaults(),
		limiter:   limiter,
		timeout:   timeout,
		retention: retention,
		imports:   make(map[string]*activeImport),
		bySubject: make(map[string]string),
	}
}

// Limiter returns the tracker's concurrency limiter.
func (t *ImportTracker) Limiter() *ImportLimiter {
	return t.limiter
}

// Start begins importing rows into subjectCode and returns the import ID.
// Only one import per subject runs at a time.
func (t *ImportTracker) Start(ctx context.Context, subjectCode, fileName string, rows []BulkImportRow) (string, error) {
	if t.running(subjectCode) {
		return "", ErrImportInProgress
	}
	if err := t.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)

	imp := &activeImport{
		cancel: cancel,
		done:   make(chan struct{}),
		status: ImportStatus{
			ImportID:    id,
			SubjectCode: subjectCode,
			FileName:    fileName,
			RequestedBy: ClientIPFromContext(ctx),
			Phase:       PhaseRunning,
			Progress:    Progress{Total: len(rows)},
			Result:      BulkImportResult{Errors: []string{}},
			StartedAt:   time.Now(),
		},
	}

	t.mu.Lock()
	if _, busy := t.bySubject[subjectCode]; busy {
		t.mu.Unlock()
		cancel()
		t.limiter.Release()
		return "", ErrImportInProgress
	}
	t.imports[id] = imp
	t.bySubject[subjectCode] = id
	t.mu.Unlock()

	logger := logging.WithFields(runCtx, "import_id", id, "subject", subjectCode, "file", fileName,
		"client_ip", ClientIPFromContext(ctx), "user_agent", UserAgentFromContext(ctx))

	go func() {
		defer t.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in import",
					"panic", r,
					"stacktrace", string(debug.Stack()),
				)
				t.complete(id, imp, nil, fmt.Errorf("internal error: %v", r))
			}
		}()
		t.run(runCtx, logger, id, imp, rows)
	}()

	return id, nil
}

func (t *ImportTracker) run(ctx context.Context, logger *slog.Logger, id string, imp *activeImport, rows []BulkImportRow) {
	importer := NewImporter(t.deps)
	result, err := importer.Run(ctx, rows, imp.status.SubjectCode, func(p Progress, r BulkImportResult) {
		imp.update(func(s *ImportStatus) {
			s.Progress = p
			s.Result = r
		})
	})
	if err != nil {
		logger.Warn("import finished with error", "error", err)
	}
	t.complete(id, imp, result, err)
}

func (t *ImportTracker) complete(id string, imp *activeImport, result *BulkImportResult, err error) {
	now := time.Now()
	imp.finish(func(s *ImportStatus) {
		if result != nil {
			s.Result = *result
		}
		s.FinishedAt = &now
		switch {
		case err == nil:
			s.Phase = PhaseComplete
			s.Progress.Current = s.Progress.Total
		case errors.Is(err, ErrImportCanceled):
			s.Phase = PhaseCanceled
			s.Error = err.Error()
		default:
			s.Phase = PhaseFailed
			s.Error = err.Error()
		}
	})

	t.mu.Lock()
	if t.bySubject[imp.status.SubjectCode] == id {
		delete(t.bySubject, imp.status.SubjectCode)
	}
	t.mu.Unlock()

	t.cleanup(id, t.retention)
}

// cleanup forgets the import after delay.
func (t *ImportTracker) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.imports, id)
		t.mu.Unlock()
	})
}

func (t *ImportTracker) running(subjectCode string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.bySubject[subjectCode]
	return ok
}

func (t *ImportTracker) get(id string) (*activeImport, error) {
	t.mu.RLock()
	imp, ok := t.imports[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return imp, nil
}

// Status returns the current status without blocking.
func (t *ImportTracker) Status(id string) (ImportStatus, error) {
	imp, err := t.get(id)
	if err != nil {
		return ImportStatus{}, err
	}
	return imp.snapshot(), nil
}

// Subscribe returns a channel of status updates. The current status is sent
// first; the channel is closed once the import is finished.
func (t *ImportTracker) Subscribe(id string) (<-chan ImportStatus, error) {
	imp, err := t.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportStatus, subscriberBuffer)

	imp.mu.Lock()
	defer imp.mu.Unlock()

	s := imp.status
	s.Result = s.Result.clone()
	ch <- s
	select {
	case <-imp.done:
		close(ch)
	default:
		imp.subscribers = append(imp.subscribers, ch)
	}
	return ch, nil
}

// Wait blocks until the import finishes or ctx ends.
func (t *ImportTracker) Wait(ctx context.Context, id string) (ImportStatus, error) {
	imp, err := t.get(id)
	if err != nil {
		return ImportStatus{}, err
	}
	select {
	case <-imp.done:
		return imp.snapshot(), nil
	case <-ctx.Done():
		return imp.snapshot(), ctx.Err()
	}
}

// Cancel stops a running import. Rows handled before the cancel are kept.
func (t *ImportTracker) Cancel(id string) error {
	imp, err := t.get(id)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// CancelAll stops every running import.
func (t *ImportTracker) CancelAll() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, imp := range t.imports {
		imp.cancel()
	}
}

// List returns every tracked import, newest first.
func (t *ImportTracker) List() []ImportStatus {
	t.mu.RLock()
	out := make([]ImportStatus, 0, len(t.imports))
	for _, imp := range t.imports {
		out = append(out, imp.snapshot())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
