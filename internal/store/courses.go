package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/core"
)

const courseColumns = `id, code, name, professor_id, created_at, updated_at`

// GetCourseByCode returns nil, nil when no course has the code.
func (s *Store) GetCourseByCode(ctx context.Context, code string) (*core.Course, error) {
	c, err := scanCourse(s.db.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", code, translate(err))
	}
	return c, nil
}

// GetCoursesByProfessor returns the professor's courses ordered by code.
func (s *Store) GetCoursesByProfessor(ctx context.Context, professorID string) ([]core.Course, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE professor_id = $1 ORDER BY code`, professorID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", translate(err))
	}

	courses, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Course, error) {
		c, err := scanCourse(r)
		if err != nil {
			return core.Course{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", translate(err))
	}
	return courses, nil
}

// CreateCourse inserts a course. A duplicate code is a 409 status error.
func (s *Store) CreateCourse(ctx context.Context, in core.CourseInput) (*core.Course, error) {
	c, err := scanCourse(s.db.QueryRow(ctx, `
		INSERT INTO courses (code, name, professor_id)
		VALUES ($1, $2, $3)
		RETURNING `+courseColumns,
		in.Code, in.Name, in.ProfessorID,
	))
	if err != nil {
		return nil, fmt.Errorf("create course %s: %w", in.Code, translate(err))
	}
	return c, nil
}

// UpdateCourse returns nil, nil when the course does not exist.
func (s *Store) UpdateCourse(ctx context.Context, id string, in core.CourseInput) (*core.Course, error) {
	if !validUUID(id) {
		return nil, nil
	}
	c, err := scanCourse(s.db.QueryRow(ctx, `
		UPDATE courses
		SET code = $2, name = $3, professor_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+courseColumns,
		toPgUUID(id), in.Code, in.Name, in.ProfessorID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update course %s: %w", id, translate(err))
	}
	return c, nil
}

// DeleteCourse returns the deleted course, or nil, nil when it does not exist.
// Enrollments in the course are removed by cascade.
func (s *Store) DeleteCourse(ctx context.Context, id string) (*core.Course, error) {
	if !validUUID(id) {
		return nil, nil
	}
	c, err := scanCourse(s.db.QueryRow(ctx,
		`DELETE FROM courses WHERE id = $1 RETURNING `+courseColumns, toPgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete course %s: %w", id, translate(err))
	}
	return c, nil
}

func scanCourse(row pgx.Row) (*core.Course, error) {
	var (
		id                   pgtype.UUID
		c                    core.Course
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &c.Code, &c.Name, &c.ProfessorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.ID = fromPgUUID(id)
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return &c, nil
}
