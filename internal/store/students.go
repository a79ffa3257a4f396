package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/core"
)

const studentColumns = `record_id, numerical_id, name, email, archived_subjects`

// AddStudent inserts a student, or refreshes the name and email of an
// existing student with the same numerical ID, and returns the stored record.
func (s *Store) AddStudent(ctx context.Context, in core.NewStudent) (*core.Student, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO students (numerical_id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (numerical_id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = COALESCE(EXCLUDED.email, students.email),
		    updated_at = now()
		RETURNING `+studentColumns,
		in.ID, in.Name, toPgText(in.Email),
	)

	st, err := scanStudent(row)
	if err != nil {
		return nil, fmt.Errorf("add student %s: %w", in.ID, translate(err))
	}
	return st, nil
}

// GetStudentByNumericalID returns nil, nil when no student has the ID.
func (s *Store) GetStudentByNumericalID(ctx context.Context, id string) (*core.Student, error) {
	row := s.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE numerical_id = $1`, id)

	st, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, translate(err))
	}
	return st, nil
}

func scanStudent(row pgx.Row) (*core.Student, error) {
	var (
		recordID pgtype.UUID
		st       core.Student
		email    pgtype.Text
		archived []string
	)
	if err := row.Scan(&recordID, &st.ID, &st.Name, &email, &archived); err != nil {
		return nil, err
	}
	st.RecordID = fromPgUUID(recordID)
	st.Email = fromPgText(email)
	if len(archived) > 0 {
		st.ArchivedSubjects = archived
	}
	return &st, nil
}
