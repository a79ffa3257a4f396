package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/fetch"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

var (
	ErrDuplicateStudent = apperr.NewStatusError(http.StatusConflict, "student already exists")
	ErrAlreadyEnrolled  = apperr.NewStatusError(http.StatusConflict, "student already enrolled")
	ErrStudentNotFound  = apperr.NewStatusError(http.StatusNotFound, "student not found")
)

// RosterService manages individual students on subject rosters. Writes go
// straight to the stores; Roster reads go through the fetch orchestrator.
type RosterService struct {
	deps    Deps
	fetcher *fetch.Orchestrator
}

// NewRosterService creates a RosterService. fetcher is also used to
// invalidate cached rosters after writes.
func NewRosterService(deps Deps, fetcher *fetch.Orchestrator) *RosterService {
	if deps.Cache == nil && fetcher != nil {
		deps.Cache = fetcher
	}
	return &RosterService{deps: deps.withDefaults(), fetcher: fetcher}
}

// Roster returns the students enrolled in subjectCode, in enrollment order.
func (s *RosterService) Roster(ctx context.Context, subjectCode string) ([]Student, error) {
	v, err := s.fetcher.FetchData(ctx, RosterKey(subjectCode), func(ctx context.Context) (any, error) {
		state, err := s.deps.State.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return rosterOf(state, subjectCode), nil
	}, fetch.Options{Label: "Load roster"})
	if err != nil {
		return nil, err
	}
	return v.([]Student), nil
}

func rosterOf(state State, subjectCode string) []Student {
	byID := make(map[string]Student, len(state.Students))
	for _, st := range state.Students {
		byID[st.ID] = st
	}

	ids := state.Enrolls[subjectCode]
	out := make([]Student, 0, len(ids))
	for _, id := range ids {
		if st, ok := byID[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

// CreateStudent adds a single student through the same steps as a bulk row.
// A student created without an enrollment is returned together with the
// CreatedWithoutEnrollment outcome rather than an error.
func (s *RosterService) CreateStudent(ctx context.Context, row BulkImportRow, subjectCode string) (*Student, Outcome, error) {
	state, err := s.deps.State.Snapshot(ctx)
	if err != nil {
		return nil, OutcomeFailed, s.report(fmt.Errorf("load roster: %w", err), "Add student")
	}

	proc := newRowProcessor(s.deps, state, subjectCode)
	outcome, err := proc.process(ctx, row)

	switch outcome {
	case OutcomeDuplicate:
		return nil, outcome, s.report(ErrDuplicateStudent, "Add student")
	case OutcomeAlreadyEnrolled:
		return nil, outcome, s.report(ErrAlreadyEnrolled, "Add student")
	case OutcomeFailed:
		var verr ValidationError
		if errors.As(err, &verr) {
			err = apperr.WrapStatus(http.StatusUnprocessableEntity, verr)
		}
		return nil, outcome, s.report(err, "Add student")
	}

	if err := s.deps.State.Save(ctx, proc.work.update()); err != nil {
		return nil, OutcomeFailed, s.report(fmt.Errorf("save roster: %w", err), "Add student")
	}
	s.deps.Cache.InvalidateCache(RosterKey(subjectCode))

	id := NormalizeStudentID(row.ID)
	created, _ := proc.work.student(id)
	logging.FromContext(ctx).Info("student created", "subject", subjectCode, "student_id", id, "outcome", outcome)
	return created, outcome, nil
}

// RemoveStudent deletes the student's enrollment in subjectCode and drops
// them from the roster.
func (s *RosterService) RemoveStudent(ctx context.Context, studentID, subjectCode string) error {
	studentID = NormalizeStudentID(studentID)
	state, err := s.deps.State.Snapshot(ctx)
	if err != nil {
		return s.report(fmt.Errorf("load roster: %w", err), "Remove student")
	}

	work := newWorkingCopy(state)
	student, ok := work.student(studentID)
	if !ok || !work.enrolls.Has(subjectCode, studentID) {
		return s.report(ErrStudentNotFound, "Remove student")
	}

	course, err := s.deps.Courses.GetCourseByCode(ctx, subjectCode)
	if err != nil {
		return s.report(fmt.Errorf("resolve course: %w", err), "Remove student")
	}
	if course != nil && student.RecordID != "" {
		if err := s.deps.Enrollments.DeleteEnrollmentByStudentAndCourse(ctx, student.RecordID, course.ID); err != nil {
			return s.report(fmt.Errorf("delete enrollment: %w", err), "Remove student")
		}
	}

	work.unenroll(subjectCode, studentID)
	if err := s.deps.State.Save(ctx, work.update()); err != nil {
		return s.report(fmt.Errorf("save roster: %w", err), "Remove student")
	}
	s.deps.Cache.InvalidateCache(RosterKey(subjectCode))
	return nil
}

// ArchiveSubject marks subjectCode as archived for the student.
func (s *RosterService) ArchiveSubject(ctx context.Context, studentID, subjectCode string) error {
	studentID = NormalizeStudentID(studentID)
	state, err := s.deps.State.Snapshot(ctx)
	if err != nil {
		return s.report(fmt.Errorf("load roster: %w", err), "Archive subject")
	}

	work := newWorkingCopy(state)
	student, ok := work.student(studentID)
	if !ok {
		return s.report(ErrStudentNotFound, "Archive subject")
	}
	if student.IsArchived(subjectCode) {
		return nil
	}
	student.ArchivedSubjects = append(slices.Clone(student.ArchivedSubjects), subjectCode)

	if err := s.deps.State.Save(ctx, StateUpdate{Students: []Student{*student}}); err != nil {
		return s.report(fmt.Errorf("save roster: %w", err), "Archive subject")
	}
	s.deps.Cache.InvalidateCache(RosterKey(subjectCode))
	return nil
}

// report classifies err with an alert and returns it.
func (s *RosterService) report(err error, operation string) error {
	s.deps.Classifier.Classify(err, operation, true)
	return err
}

// IsConflict reports whether err is a roster conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateStudent) || errors.Is(err, ErrAlreadyEnrolled)
}
