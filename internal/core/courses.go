package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/fetch"
)

// ErrCourseNotFound is returned when a course ID does not exist.
var ErrCourseNotFound = apperr.NewStatusError(http.StatusNotFound, "course not found")

// CourseService lists and edits a professor's courses. Lists are cached per
// professor and retried on transient failures; edits invalidate the list.
type CourseService struct {
	courses    CourseStore
	fetcher    *fetch.Orchestrator
	classifier *apperr.Classifier
	retry      fetch.RetryPolicy
}

// NewCourseService creates a CourseService.
func NewCourseService(courses CourseStore, fetcher *fetch.Orchestrator, classifier *apperr.Classifier, retry fetch.RetryPolicy) *CourseService {
	if classifier == nil {
		classifier = apperr.NewClassifier(nil, nil)
	}
	return &CourseService{courses: courses, fetcher: fetcher, classifier: classifier, retry: retry}
}

// ListCourses returns the professor's courses.
func (s *CourseService) ListCourses(ctx context.Context, professorID string, forceRefresh bool) ([]Course, error) {
	v, err := s.fetcher.FetchWithRetry(ctx, CoursesKey(professorID), func(ctx context.Context) (any, error) {
		return s.courses.GetCoursesByProfessor(ctx, professorID)
	}, fetch.Options{Label: "Load courses", ForceRefresh: forceRefresh}, s.retry)
	if err != nil {
		return nil, err
	}
	return v.([]Course), nil
}

// CreateCourse validates and stores a new course.
func (s *CourseService) CreateCourse(ctx context.Context, in CourseInput) (*Course, error) {
	in = normalizeCourseInput(in)
	if err := validateCourseInput(in); err != nil {
		return nil, s.report(err, "Create course")
	}

	c, err := s.courses.CreateCourse(ctx, in)
	if err != nil {
		return nil, s.report(fmt.Errorf("create course: %w", err), "Create course")
	}
	s.fetcher.InvalidateCache(CoursesKey(c.ProfessorID))
	return c, nil
}

// UpdateCourse replaces the course's code and name.
func (s *CourseService) UpdateCourse(ctx context.Context, id string, in CourseInput) (*Course, error) {
	in = normalizeCourseInput(in)
	if err := validateCourseInput(in); err != nil {
		return nil, s.report(err, "Update course")
	}

	c, err := s.courses.UpdateCourse(ctx, id, in)
	if err != nil {
		return nil, s.report(fmt.Errorf("update course: %w", err), "Update course")
	}
	if c == nil {
		return nil, s.report(ErrCourseNotFound, "Update course")
	}
	s.fetcher.InvalidateCache(CoursesKey(c.ProfessorID), RosterKey(c.Code))
	return c, nil
}

// DeleteCourse removes the course.
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	c, err := s.courses.DeleteCourse(ctx, id)
	if err != nil {
		return s.report(fmt.Errorf("delete course: %w", err), "Delete course")
	}
	if c == nil {
		return s.report(ErrCourseNotFound, "Delete course")
	}
	s.fetcher.InvalidateCache(CoursesKey(c.ProfessorID), RosterKey(c.Code))
	return nil
}

func (s *CourseService) report(err error, operation string) error {
	s.classifier.Classify(err, operation, true)
	return err
}

func normalizeCourseInput(in CourseInput) CourseInput {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.ProfessorID = strings.TrimSpace(in.ProfessorID)
	return in
}

func validateCourseInput(in CourseInput) error {
	var missing []string
	if in.Code == "" {
		missing = append(missing, "code")
	}
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.ProfessorID == "" {
		missing = append(missing, "professorId")
	}
	if len(missing) > 0 {
		return apperr.NewStatusError(http.StatusUnprocessableEntity,
			"required fields missing: "+strings.Join(missing, ", "))
	}
	return nil
}
