package core

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/apperr"
)

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu sync.Mutex

	state       State
	courses     map[string]*Course // by code
	nextID      int
	enrollments []Enrollment
	saves       []StateUpdate

	addErr      map[string]error // by student ID
	enrollErr   error
	courseErr   error
	snapshotErr error
	saveErr     error
	courseCalls int
	beforeAdd   func(id string)
	noRecordIDs bool
	invalidated []string
}

func newMemStore() *memStore {
	return &memStore{
		state:   State{Enrolls: Enrolls{}},
		courses: map[string]*Course{},
		addErr:  map[string]error{},
	}
}

func (m *memStore) withCourse(code string) *memStore {
	m.courses[code] = &Course{ID: "course-" + code, Code: code, Name: code, ProfessorID: "prof-1"}
	return m
}

func (m *memStore) deps() Deps {
	return Deps{Students: m, Courses: m, Enrollments: m, State: m, Cache: m}
}

func (m *memStore) AddStudent(_ context.Context, s NewStudent) (*Student, error) {
	if m.beforeAdd != nil {
		m.beforeAdd(s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.addErr[s.ID]; err != nil {
		return nil, err
	}
	m.nextID++
	out := &Student{ID: s.ID, Name: s.Name, Email: s.Email}
	if !m.noRecordIDs {
		out.RecordID = fmt.Sprintf("rec-%d", m.nextID)
	}
	return out, nil
}

func (m *memStore) GetStudentByNumericalID(_ context.Context, id string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.state.Students {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetCourseByCode(_ context.Context, code string) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courseCalls++
	if m.courseErr != nil {
		return nil, m.courseErr
	}
	return m.courses[code], nil
}

func (m *memStore) GetCoursesByProfessor(_ context.Context, professorID string) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.courseErr != nil {
		return nil, m.courseErr
	}
	var out []Course
	for _, c := range m.courses {
		if c.ProfessorID == professorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) CreateCourse(_ context.Context, in CourseInput) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.courses[in.Code]; exists {
		return nil, fmt.Errorf("duplicate key value violates unique constraint")
	}
	c := &Course{ID: "course-" + in.Code, Code: in.Code, Name: in.Name, ProfessorID: in.ProfessorID}
	m.courses[in.Code] = c
	return c, nil
}

func (m *memStore) UpdateCourse(_ context.Context, id string, in CourseInput) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, c := range m.courses {
		if c.ID == id {
			delete(m.courses, code)
			c.Code, c.Name, c.ProfessorID = in.Code, in.Name, in.ProfessorID
			m.courses[c.Code] = c
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) DeleteCourse(_ context.Context, id string) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, c := range m.courses {
		if c.ID == id {
			delete(m.courses, code)
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateEnrollment(_ context.Context, studentRecordID, courseID string) (*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	e := Enrollment{ID: fmt.Sprintf("enr-%d", len(m.enrollments)+1), StudentRecordID: studentRecordID, CourseID: courseID}
	m.enrollments = append(m.enrollments, e)
	return &e, nil
}

func (m *memStore) DeleteEnrollmentByStudentAndCourse(_ context.Context, studentRecordID, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.enrollments {
		if e.StudentRecordID == studentRecordID && e.CourseID == courseID {
			m.enrollments = append(m.enrollments[:i], m.enrollments[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) Snapshot(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return State{}, m.snapshotErr
	}
	return State{Students: append([]Student(nil), m.state.Students...), Enrolls: m.state.Enrolls.Clone()}, nil
}

func (m *memStore) Save(_ context.Context, u StateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, u)

	for _, s := range u.Students {
		replaced := false
		for i := range m.state.Students {
			if m.state.Students[i].ID == s.ID {
				m.state.Students[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			m.state.Students = append(m.state.Students, s)
		}
	}
	for code, ids := range u.Enrolls {
		m.state.Enrolls[code] = append([]string(nil), ids...)
	}
	for code, ids := range u.Removes {
		m.state.Enrolls[code] = slices.DeleteFunc(m.state.Enrolls[code], func(id string) bool {
			return slices.Contains(ids, id)
		})
	}
	for code, ids := range u.Appends {
		for _, id := range ids {
			if !slices.Contains(m.state.Enrolls[code], id) {
				m.state.Enrolls[code] = append(m.state.Enrolls[code], id)
			}
		}
	}
	return nil
}

func (m *memStore) InvalidateCache(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, keys...)
}

// seed puts a student on the roster of subjectCode.
func (m *memStore) seed(subjectCode string, s Student) {
	m.state.Students = append(m.state.Students, s)
	if subjectCode != "" {
		m.state.Enrolls[subjectCode] = append(m.state.Enrolls[subjectCode], s.ID)
	}
}

func withAlerts(d Deps) (Deps, *alert.Center) {
	center := alert.NewCenter(50)
	d.Classifier = apperr.NewClassifier(center, nil)
	return d, center
}

func rowsOf(pairs ...[2]string) []BulkImportRow {
	rows := make([]BulkImportRow, len(pairs))
	for i, p := range pairs {
		rows[i] = BulkImportRow{Index: i, ID: p[0], Name: p[1]}
	}
	return rows
}
