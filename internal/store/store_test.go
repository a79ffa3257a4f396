package store

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/core"
)

// newTestStore connects to GRADEBOOK_TEST_DATABASE_URL and skips when unset.
// Each test uses its own subject codes so runs do not interfere.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("GRADEBOOK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GRADEBOOK_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func uniqueID(t *testing.T) string {
	t.Helper()
	return uuid.NewString()[:8]
}

func TestStore_CourseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	code := "T" + uniqueID(t)

	created, err := s.CreateCourse(ctx, core.CourseInput{Code: code, Name: "Testing", ProfessorID: "prof-" + code})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = s.CreateCourse(ctx, core.CourseInput{Code: code, Name: "Again", ProfessorID: "prof-" + code})
	assert.Equal(t, http.StatusConflict, apperr.StatusCode(err))

	got, err := s.GetCourseByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	list, err := s.GetCoursesByProfessor(ctx, "prof-"+code)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := s.UpdateCourse(ctx, created.ID, core.CourseInput{Code: code, Name: "Renamed", ProfessorID: "prof-" + code})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	deleted, err := s.DeleteCourse(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	missing, err := s.GetCourseByCode(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, missing)

	gone, err := s.DeleteCourse(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_SaveAndSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	suffix := uniqueID(t)
	code := "R" + suffix

	a, err := s.AddStudent(ctx, core.NewStudent{ID: "9" + suffix[:5], Name: "Ana"})
	require.NoError(t, err)
	require.NotEmpty(t, a.RecordID)

	again, err := s.AddStudent(ctx, core.NewStudent{ID: a.ID, Name: "Ana Lopez"})
	require.NoError(t, err)
	assert.Equal(t, a.RecordID, again.RecordID, "adding an existing ID returns the same record")

	course, err := s.CreateCourse(ctx, core.CourseInput{Code: code, Name: "Roster", ProfessorID: "p"})
	require.NoError(t, err)
	_, err = s.CreateEnrollment(ctx, a.RecordID, course.ID)
	require.NoError(t, err)
	_, err = s.CreateEnrollment(ctx, a.RecordID, course.ID)
	assert.Equal(t, http.StatusConflict, apperr.StatusCode(err))

	b := core.Student{ID: "8" + suffix[:5], Name: "Ben", ArchivedSubjects: []string{code}}
	require.NoError(t, s.Save(ctx, core.StateUpdate{
		Students: []core.Student{*again, b},
		Enrolls:  core.Enrolls{code: {b.ID, a.ID}},
	}))

	state, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, state.Enrolls[code])

	stored, err := s.GetStudentByNumericalID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsArchived(code))

	c := core.Student{ID: "7" + suffix[:5], Name: "Cleo"}
	require.NoError(t, s.Save(ctx, core.StateUpdate{
		Students: []core.Student{c},
		Removes:  core.Enrolls{code: {b.ID}},
		Appends:  core.Enrolls{code: {a.ID, c.ID}},
	}))

	state, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, state.Enrolls[code], "appends skip IDs already on the roster")

	require.NoError(t, s.DeleteEnrollmentByStudentAndCourse(ctx, a.RecordID, course.ID))
	_, err = s.DeleteCourse(ctx, course.ID)
	require.NoError(t, err)
}
