package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/core"
)

// CreateEnrollment links a student record to a course. Enrolling twice is a
// 409 status error.
func (s *Store) CreateEnrollment(ctx context.Context, studentRecordID, courseID string) (*core.Enrollment, error) {
	if !validUUID(studentRecordID) || !validUUID(courseID) {
		return nil, apperr.NewStatusError(http.StatusUnprocessableEntity, "invalid student record or course id")
	}

	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `
		INSERT INTO enrollments (student_record_id, course_id)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		toPgUUID(studentRecordID), toPgUUID(courseID),
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", translate(err))
	}

	return &core.Enrollment{
		ID:              fromPgUUID(id),
		StudentRecordID: studentRecordID,
		CourseID:        courseID,
		CreatedAt:       createdAt.Time,
	}, nil
}

// DeleteEnrollmentByStudentAndCourse removes the link if present.
func (s *Store) DeleteEnrollmentByStudentAndCourse(ctx context.Context, studentRecordID, courseID string) error {
	if !validUUID(studentRecordID) || !validUUID(courseID) {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`DELETE FROM enrollments WHERE student_record_id = $1 AND course_id = $2`,
		toPgUUID(studentRecordID), toPgUUID(courseID),
	)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", translate(err))
	}
	return nil
}
