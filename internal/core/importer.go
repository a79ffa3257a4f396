package core

// importer.go implements the bulk student import pipeline.
//
// A run loads a snapshot of the roster state, then handles rows strictly in
// input order so duplicates within the same file are caught against rows
// already accepted. Each row is validated, checked for conflicts, and
// persisted through the collaborator stores. A failing row never stops the
// run. The working copy is committed once at the end.
//
// Failures loading the snapshot or committing the working copy are wholesale:
// every row is reported as failed and the cause is classified for the user.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/metrics"
)

var (
	// ErrImportInProgress is returned when a run is started while one is active.
	ErrImportInProgress = errors.New("import already running")

	// ErrImportCanceled is returned with the partial result of a canceled run.
	ErrImportCanceled = errors.New("import canceled")
)

// Deps are the collaborators of the import pipeline and roster operations.
type Deps struct {
	Students    StudentStore
	Courses     CourseStore
	Enrollments EnrollmentStore
	State       StateStore

	Classifier *apperr.Classifier
	Cache      CacheInvalidator

	// ValidateID defaults to DefaultStudentIDValidator.
	ValidateID StudentIDValidator
}

func (d Deps) withDefaults() Deps {
	if d.Classifier == nil {
		d.Classifier = apperr.NewClassifier(nil, nil)
	}
	if d.Cache == nil {
		d.Cache = noopInvalidator{}
	}
	if d.ValidateID == nil {
		d.ValidateID = DefaultStudentIDValidator
	}
	return d
}

// Importer runs bulk imports. One run at a time; Run returns
// ErrImportInProgress while another is active.
type Importer struct {
	deps Deps

	mu       sync.Mutex
	phase    Phase
	progress Progress
}

// NewImporter creates an idle Importer.
func NewImporter(deps Deps) *Importer {
	return &Importer{deps: deps.withDefaults(), phase: PhaseIdle}
}

// IsProcessing reports whether a run is active.
func (im *Importer) IsProcessing() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.phase == PhaseRunning
}

// Phase returns the state of the current or last run.
func (im *Importer) Phase() Phase {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.phase
}

// Progress returns rows handled so far in the current or last run.
func (im *Importer) Progress() Progress {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.progress
}

func (im *Importer) start(total int) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.phase == PhaseRunning {
		return false
	}
	im.phase = PhaseRunning
	im.progress = Progress{Total: total}
	return true
}

func (im *Importer) advance(current int) Progress {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.progress.Current = current
	return im.progress
}

func (im *Importer) finish(phase Phase) {
	im.mu.Lock()
	im.phase = phase
	im.mu.Unlock()
	metrics.ImportRuns.WithLabelValues(string(phase)).Inc()
}

// Run imports rows into subjectCode. onProgress, when set, is called after
// every row. The result is returned even when err is non-nil.
func (im *Importer) Run(ctx context.Context, rows []BulkImportRow, subjectCode string, onProgress ProgressFunc) (*BulkImportResult, error) {
	if !im.start(len(rows)) {
		return nil, ErrImportInProgress
	}

	logger := logging.WithFields(ctx, "subject", subjectCode, "rows", len(rows))
	logger.Info("bulk import started")

	result := &BulkImportResult{Errors: []string{}}

	state, err := im.deps.State.Snapshot(ctx)
	if err != nil {
		im.finish(PhaseFailed)
		return im.failWholesale(logger, result, len(rows), fmt.Errorf("load roster: %w", err))
	}

	proc := newRowProcessor(im.deps, state, subjectCode)
	canceled := false

	for i, row := range rows {
		if ctx.Err() != nil {
			for _, rest := range rows[i:] {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rest.Line(), ErrImportCanceled))
			}
			canceled = true
			break
		}

		outcome, err := proc.process(ctx, row)
		tally(result, outcome, row, err)

		p := im.advance(i + 1)
		if onProgress != nil {
			onProgress(p, result.clone())
		}
	}

	// Rows already persisted must reach the state even if the caller gave up.
	if err := im.deps.State.Save(context.WithoutCancel(ctx), proc.work.update()); err != nil {
		im.finish(PhaseFailed)
		return im.failWholesale(logger, result, len(rows), fmt.Errorf("save roster: %w", err))
	}
	im.deps.Cache.InvalidateCache(RosterKey(subjectCode))

	result.Summary = summarize(*result, len(rows))
	im.deps.Classifier.Notify(summaryAlertType(*result), "Bulk import", result.Summary)
	recordRowMetrics(*result)

	logger.Info("bulk import complete",
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"duplicate", result.DuplicateCount,
		"already_enrolled", result.AlreadyEnrolledCount,
		"created_without_enrollment", result.CreatedWithoutEnrollmentCount,
	)

	if canceled {
		im.finish(PhaseCanceled)
		return result, ErrImportCanceled
	}
	im.finish(PhaseComplete)
	return result, nil
}

// failWholesale marks every row failed and reports err once.
func (im *Importer) failWholesale(logger *slog.Logger, result *BulkImportResult, total int, err error) (*BulkImportResult, error) {
	msg := im.deps.Classifier.Classify(err, "Bulk import", true)
	logger.Error("bulk import failed", "error", err)

	failed := &BulkImportResult{
		FailedCount: total,
		Errors:      append(result.Errors, "Import failed: "+msg),
		Summary:     msg,
	}
	metrics.RecordImportRows(string(OutcomeFailed), total)
	return failed, err
}

func tally(result *BulkImportResult, outcome Outcome, row BulkImportRow, err error) {
	switch outcome {
	case OutcomeSuccess:
		result.SuccessCount++
	case OutcomeDuplicate:
		result.DuplicateCount++
	case OutcomeAlreadyEnrolled:
		result.AlreadyEnrolledCount++
	case OutcomeCreatedWithoutEnrollment:
		result.CreatedWithoutEnrollmentCount++
	default:
		result.FailedCount++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", row.Line(), err))
	}
}

func summarize(r BulkImportResult, total int) string {
	var parts []string
	if r.FailedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.FailedCount))
	}
	if r.DuplicateCount > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate", r.DuplicateCount))
	}
	if r.AlreadyEnrolledCount > 0 {
		parts = append(parts, fmt.Sprintf("%d already enrolled", r.AlreadyEnrolledCount))
	}
	if r.CreatedWithoutEnrollmentCount > 0 {
		parts = append(parts, fmt.Sprintf("%d created without enrollment", r.CreatedWithoutEnrollmentCount))
	}

	s := fmt.Sprintf("Imported %d of %d students", r.SuccessCount, total)
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	return s
}

func summaryAlertType(r BulkImportResult) alert.Type {
	switch {
	case r.FailedCount > 0 && r.SuccessCount == 0:
		return alert.TypeError
	case r.FailedCount > 0 || r.CreatedWithoutEnrollmentCount > 0:
		return alert.TypeWarning
	case r.SuccessCount > 0:
		return alert.TypeSuccess
	default:
		return alert.TypeInfo
	}
}

func recordRowMetrics(r BulkImportResult) {
	metrics.RecordImportRows(string(OutcomeSuccess), r.SuccessCount)
	metrics.RecordImportRows(string(OutcomeFailed), r.FailedCount)
	metrics.RecordImportRows(string(OutcomeDuplicate), r.DuplicateCount)
	metrics.RecordImportRows(string(OutcomeAlreadyEnrolled), r.AlreadyEnrolledCount)
	metrics.RecordImportRows(string(OutcomeCreatedWithoutEnrollment), r.CreatedWithoutEnrollmentCount)
}
