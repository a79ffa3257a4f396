package core

import "context"

// StudentStore persists student records.
type StudentStore interface {
	AddStudent(ctx context.Context, s NewStudent) (*Student, error)
	// GetStudentByNumericalID returns nil, nil when no student has the ID.
	GetStudentByNumericalID(ctx context.Context, id string) (*Student, error)
}

// CourseStore persists courses.
type CourseStore interface {
	// GetCourseByCode returns nil, nil when no course has the code.
	GetCourseByCode(ctx context.Context, code string) (*Course, error)
	GetCoursesByProfessor(ctx context.Context, professorID string) ([]Course, error)
	CreateCourse(ctx context.Context, in CourseInput) (*Course, error)
	UpdateCourse(ctx context.Context, id string, in CourseInput) (*Course, error)
	// DeleteCourse returns the deleted course.
	DeleteCourse(ctx context.Context, id string) (*Course, error)
}

// EnrollmentStore persists enrollments.
type EnrollmentStore interface {
	CreateEnrollment(ctx context.Context, studentRecordID, courseID string) (*Enrollment, error)
	DeleteEnrollmentByStudentAndCourse(ctx context.Context, studentRecordID, courseID string) error
}

// StateStore loads and commits application state.
type StateStore interface {
	Snapshot(ctx context.Context) (State, error)
	Save(ctx context.Context, update StateUpdate) error
}

// CacheInvalidator drops cached reads after a write.
type CacheInvalidator interface {
	InvalidateCache(keys ...string)
}

// RosterKey is the cache key of a subject's roster.
func RosterKey(subjectCode string) string {
	return "roster:" + subjectCode
}

// CoursesKey is the cache key of a professor's course list.
func CoursesKey(professorID string) string {
	return "courses:" + professorID
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateCache(...string) {}
