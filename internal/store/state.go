package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
)

// Snapshot loads every student and every subject roster.
func (s *Store) Snapshot(ctx context.Context) (core.State, error) {
	state := core.State{Enrolls: core.Enrolls{}}

	rows, err := s.db.Query(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY created_at, numerical_id`)
	if err != nil {
		return core.State{}, fmt.Errorf("load students: %w", translate(err))
	}
	state.Students, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Student, error) {
		st, err := scanStudent(r)
		if err != nil {
			return core.Student{}, err
		}
		return *st, nil
	})
	if err != nil {
		return core.State{}, fmt.Errorf("load students: %w", translate(err))
	}

	rows, err = s.db.Query(ctx,
		`SELECT subject_code, numerical_id FROM subject_rosters ORDER BY subject_code, position`)
	if err != nil {
		return core.State{}, fmt.Errorf("load rosters: %w", translate(err))
	}
	var code, id string
	_, err = pgx.ForEachRow(rows, []any{&code, &id}, func() error {
		state.Enrolls[code] = append(state.Enrolls[code], id)
		return nil
	})
	if err != nil {
		return core.State{}, fmt.Errorf("load rosters: %w", translate(err))
	}

	return state, nil
}

// Save commits a partial state in one transaction. Students are upserted by
// numerical ID; each subject in update.Enrolls has its roster replaced, then
// update.Removes and update.Appends are applied. Writers to the same subject
// are serialized with a transaction-scoped advisory lock.
func (s *Store) Save(ctx context.Context, update core.StateUpdate) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := upsertStudents(ctx, tx, update.Students); err != nil {
			return err
		}

		for _, code := range subjectCodes(update.Enrolls, update.Removes, update.Appends) {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('subject_rosters:' || $1))`, code); err != nil {
				return fmt.Errorf("lock roster %s: %w", code, translate(err))
			}
		}

		for _, code := range subjectCodes(update.Enrolls) {
			if err := replaceRoster(ctx, tx, code, update.Enrolls[code]); err != nil {
				return err
			}
		}
		for _, code := range subjectCodes(update.Removes) {
			if err := removeFromRoster(ctx, tx, code, update.Removes[code]); err != nil {
				return err
			}
		}
		for _, code := range subjectCodes(update.Appends) {
			if err := appendToRoster(ctx, tx, code, update.Appends[code]); err != nil {
				return err
			}
		}
		return nil
	})
}

// subjectCodes returns the distinct subject codes of sets, sorted so locks
// are always taken in the same order.
func subjectCodes(sets ...core.Enrolls) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, set := range sets {
		for code := range set {
			if _, ok := seen[code]; !ok {
				seen[code] = struct{}{}
				codes = append(codes, code)
			}
		}
	}
	sort.Strings(codes)
	return codes
}

func upsertStudents(ctx context.Context, tx pgx.Tx, students []core.Student) error {
	if len(students) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range students {
		archived := st.ArchivedSubjects
		if archived == nil {
			archived = []string{}
		}
		batch.Queue(`
			INSERT INTO students (record_id, numerical_id, name, email, archived_subjects)
			VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5)
			ON CONFLICT (numerical_id) DO UPDATE
			SET name = EXCLUDED.name,
			    email = EXCLUDED.email,
			    archived_subjects = EXCLUDED.archived_subjects,
			    updated_at = now()`,
			toPgUUID(st.RecordID), st.ID, st.Name, toPgText(st.Email), archived,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save students: %w", translate(err))
	}
	return nil
}

func replaceRoster(ctx context.Context, tx pgx.Tx, code string, ids []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM subject_rosters WHERE subject_code = $1`, code); err != nil {
		return fmt.Errorf("clear roster %s: %w", code, translate(err))
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"subject_rosters"},
		[]string{"subject_code", "position", "numerical_id"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			return []any{code, int32(i), ids[i]}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("save roster %s: %w", code, translate(err))
	}
	return nil
}

func removeFromRoster(ctx context.Context, tx pgx.Tx, code string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`DELETE FROM subject_rosters WHERE subject_code = $1 AND numerical_id = ANY($2)`, code, ids)
	if err != nil {
		return fmt.Errorf("remove from roster %s: %w", code, translate(err))
	}
	return nil
}

func appendToRoster(ctx context.Context, tx pgx.Tx, code string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`
			INSERT INTO subject_rosters (subject_code, position, numerical_id)
			SELECT $1, COALESCE(MAX(position) + 1, 0), $2
			FROM subject_rosters WHERE subject_code = $1
			ON CONFLICT (subject_code, numerical_id) DO NOTHING`,
			code, id,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append to roster %s: %w", code, translate(err))
	}
	return nil
}
