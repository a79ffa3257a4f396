package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
)

type fakeCourses struct {
	mu          sync.Mutex
	courses     []core.Course
	err         error
	lastRefresh bool
	created     []core.CourseInput
	deleted     []string
}

func (f *fakeCourses) ListCourses(_ context.Context, professorID string, forceRefresh bool) ([]core.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRefresh = forceRefresh
	if f.err != nil {
		return nil, f.err
	}
	var out []core.Course
	for _, c := range f.courses {
		if c.ProfessorID == professorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCourses) CreateCourse(_ context.Context, in core.CourseInput) (*core.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &core.Course{ID: "course-1", Code: in.Code, Name: in.Name, ProfessorID: in.ProfessorID}, nil
}

func (f *fakeCourses) UpdateCourse(_ context.Context, id string, in core.CourseInput) (*core.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Course{ID: id, Code: in.Code, Name: in.Name, ProfessorID: in.ProfessorID}, nil
}

func (f *fakeCourses) DeleteCourse(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRoster struct {
	mu       sync.Mutex
	students []core.Student
	outcome  core.Outcome
	err      error
	calls    []string
}

func (f *fakeRoster) Roster(context.Context, string) ([]core.Student, error) {
	return f.students, f.err
}

func (f *fakeRoster) CreateStudent(_ context.Context, row core.BulkImportRow, subjectCode string) (*core.Student, core.Outcome, error) {
	f.record("create " + subjectCode + " " + row.ID)
	if f.err != nil {
		return nil, core.OutcomeFailed, f.err
	}
	outcome := f.outcome
	if outcome == "" {
		outcome = core.OutcomeSuccess
	}
	return &core.Student{ID: row.ID, RecordID: "rec-" + row.ID, Name: row.Name, Email: row.Email}, outcome, nil
}

func (f *fakeRoster) RemoveStudent(_ context.Context, studentID, subjectCode string) error {
	f.record("remove " + subjectCode + " " + studentID)
	return f.err
}

func (f *fakeRoster) ArchiveSubject(_ context.Context, studentID, subjectCode string) error {
	f.record("archive " + subjectCode + " " + studentID)
	return f.err
}

func (f *fakeRoster) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

type fakeImports struct {
	mu       sync.Mutex
	limiter  *core.ImportLimiter
	startErr error
	started  map[string][]core.BulkImportRow
	ctx      context.Context
	statuses map[string]core.ImportStatus
	updates  []core.ImportStatus
	canceled []string
}

func newFakeImports() *fakeImports {
	return &fakeImports{
		limiter:  core.NewImportLimiter(2, time.Second),
		started:  map[string][]core.BulkImportRow{},
		statuses: map[string]core.ImportStatus{},
	}
}

func (f *fakeImports) Start(ctx context.Context, subjectCode, _ string, rows []core.BulkImportRow) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.ctx = ctx
	f.started[subjectCode] = rows
	return "import-1", nil
}

func (f *fakeImports) Status(id string) (core.ImportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	if !ok {
		return core.ImportStatus{}, core.ErrImportNotFound
	}
	return s, nil
}

// Subscribe replays the configured updates and closes the channel.
func (f *fakeImports) Subscribe(id string) (<-chan core.ImportStatus, error) {
	if _, err := f.Status(id); err != nil {
		return nil, err
	}
	ch := make(chan core.ImportStatus, len(f.updates))
	for _, u := range f.updates {
		ch <- u
	}
	close(ch)
	return ch, nil
}

func (f *fakeImports) Cancel(id string) error {
	if _, err := f.Status(id); err != nil {
		return err
	}
	f.mu.Lock()
	f.canceled = append(f.canceled, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeImports) List() []core.ImportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.ImportStatus, 0, len(f.statuses))
	for _, s := range f.statuses {
		out = append(out, s)
	}
	return out
}

func (f *fakeImports) Limiter() *core.ImportLimiter {
	return f.limiter
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
	cleared     int
}

func (f *fakeCache) InvalidateCache(keys ...string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, keys...)
	f.mu.Unlock()
}

func (f *fakeCache) ClearCache() {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// testEnv bundles a server with its fakes.
type testEnv struct {
	server  *Server
	courses *fakeCourses
	roster  *fakeRoster
	imports *fakeImports
	alerts  *alert.Center
	cache   *fakeCache
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20, MaxRows: 3},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	env := &testEnv{
		courses: &fakeCourses{},
		roster:  &fakeRoster{},
		imports: newFakeImports(),
		alerts:  alert.NewCenter(10),
		cache:   &fakeCache{},
	}
	env.server = NewServer(Services{
		Courses:  env.courses,
		Roster:   env.roster,
		Imports:  env.imports,
		Alerts:   env.alerts,
		Cache:    env.cache,
		Database: fakePinger{},
	}, cfg)
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}
