package core

import (
	"slices"
	"time"
)

// Student is a person on one or more subject rosters.
type Student struct {
	ID               string   `json:"id"`       // numerical student ID, 6-10 digits
	RecordID         string   `json:"recordId"` // identifier assigned by the student store
	Name             string   `json:"name"`
	Email            string   `json:"email,omitempty"`
	ArchivedSubjects []string `json:"archivedSubjects,omitempty"`
}

// IsArchived reports whether the student archived the given subject.
func (s Student) IsArchived(subjectCode string) bool {
	return slices.Contains(s.ArchivedSubjects, subjectCode)
}

// NewStudent is the payload for creating a student record.
type NewStudent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Course is a subject taught by a professor.
type Course struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ProfessorID string    `json:"professorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CourseInput is the payload for creating or updating a course.
type CourseInput struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	ProfessorID string `json:"professorId"`
}

// Enrollment links a student record to a course.
type Enrollment struct {
	ID              string    `json:"id"`
	StudentRecordID string    `json:"studentRecordId"`
	CourseID        string    `json:"courseId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Enrolls maps a subject code to the ordered student IDs on its roster.
type Enrolls map[string][]string

// Has reports whether studentID is on the subject's roster.
func (e Enrolls) Has(subjectCode, studentID string) bool {
	return slices.Contains(e[subjectCode], studentID)
}

// Clone returns a deep copy.
func (e Enrolls) Clone() Enrolls {
	out := make(Enrolls, len(e))
	for code, ids := range e {
		out[code] = slices.Clone(ids)
	}
	return out
}

// State is the persisted application state the pipeline works against.
type State struct {
	Students []Student `json:"students"`
	Enrolls  Enrolls   `json:"enrolls"`
}

// StateUpdate is a partial state commit, applied in this order: Students are
// upserted by ID; each subject present in Enrolls has its roster replaced;
// Removes drops IDs from a roster; Appends adds IDs to the end of a roster,
// skipping IDs already on it. Nil fields are left unchanged.
type StateUpdate struct {
	Students []Student `json:"students,omitempty"`
	Enrolls  Enrolls   `json:"enrolls,omitempty"`
	Removes  Enrolls   `json:"removes,omitempty"`
	Appends  Enrolls   `json:"appends,omitempty"`
}

// BulkImportRow is one raw input record. Index is its 0-based position in the input.
type BulkImportRow struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Line returns the 1-based row number used in messages.
func (r BulkImportRow) Line() int {
	return r.Index + 1
}

// BulkImportResult tallies one import run. Counts only increase during a run.
type BulkImportResult struct {
	SuccessCount                  int      `json:"successCount"`
	FailedCount                   int      `json:"failedCount"`
	DuplicateCount                int      `json:"duplicateCount"`
	AlreadyEnrolledCount          int      `json:"alreadyEnrolledCount"`
	CreatedWithoutEnrollmentCount int      `json:"createdWithoutEnrollmentCount"`
	Errors                        []string `json:"errors"`
	Summary                       string   `json:"summary,omitempty"`
}

// Processed returns the number of rows accounted for.
func (r BulkImportResult) Processed() int {
	return r.SuccessCount + r.FailedCount + r.DuplicateCount +
		r.AlreadyEnrolledCount + r.CreatedWithoutEnrollmentCount
}

func (r BulkImportResult) clone() BulkImportResult {
	r.Errors = slices.Clone(r.Errors)
	return r
}

// Progress reports how many rows of a run have been handled.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Current * 100 / p.Total
}

// ProgressFunc receives the progress and tally after every row.
type ProgressFunc func(Progress, BulkImportResult)

// Phase is the state of an import run.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
	PhaseCanceled Phase = "canceled"
)

// Outcome classifies a single row.
type Outcome string

const (
	OutcomeSuccess                  Outcome = "success"
	OutcomeFailed                   Outcome = "failed"
	OutcomeDuplicate                Outcome = "duplicate"
	OutcomeAlreadyEnrolled          Outcome = "already_enrolled"
	OutcomeCreatedWithoutEnrollment Outcome = "created_without_enrollment"
)
