package core

import (
	"context"
	"slices"
)

// workingCopy is the in-memory draft of students and enrollments for one
// operation. It is committed with a single StateStore.Save that carries only
// the changes made here, so concurrent writers to other students and
// subjects are not overwritten with the snapshot.
type workingCopy struct {
	students []Student
	byID     map[string]int // student ID -> index in students
	enrolls  Enrolls

	added    []int // indexes into students
	appended Enrolls
	removed  Enrolls
}

func newWorkingCopy(s State) *workingCopy {
	w := &workingCopy{
		students: slices.Clone(s.Students),
		byID:     make(map[string]int, len(s.Students)),
		enrolls:  s.Enrolls.Clone(),
		appended: Enrolls{},
		removed:  Enrolls{},
	}
	for i, st := range w.students {
		w.byID[st.ID] = i
	}
	return w
}

func (w *workingCopy) student(id string) (*Student, bool) {
	i, ok := w.byID[id]
	if !ok {
		return nil, false
	}
	return &w.students[i], true
}

func (w *workingCopy) addStudent(s Student) {
	w.byID[s.ID] = len(w.students)
	w.added = append(w.added, len(w.students))
	w.students = append(w.students, s)
}

func (w *workingCopy) enroll(subjectCode, id string) {
	w.enrolls[subjectCode] = append(w.enrolls[subjectCode], id)
	w.appended[subjectCode] = append(w.appended[subjectCode], id)
}

func (w *workingCopy) unenroll(subjectCode, id string) bool {
	ids := w.enrolls[subjectCode]
	i := slices.Index(ids, id)
	if i < 0 {
		return false
	}
	w.enrolls[subjectCode] = slices.Delete(slices.Clone(ids), i, i+1)
	if j := slices.Index(w.appended[subjectCode], id); j >= 0 {
		w.appended[subjectCode] = slices.Delete(w.appended[subjectCode], j, j+1)
	} else {
		w.removed[subjectCode] = append(w.removed[subjectCode], id)
	}
	return true
}

// update returns the changes made since the snapshot.
func (w *workingCopy) update() StateUpdate {
	var u StateUpdate
	for _, i := range w.added {
		u.Students = append(u.Students, w.students[i])
	}
	for code, ids := range w.appended {
		if len(ids) > 0 {
			if u.Appends == nil {
				u.Appends = Enrolls{}
			}
			u.Appends[code] = slices.Clone(ids)
		}
	}
	for code, ids := range w.removed {
		if u.Removes == nil {
			u.Removes = Enrolls{}
		}
		u.Removes[code] = slices.Clone(ids)
	}
	return u
}

// rowProcessor applies the per-row steps against a working copy.
type rowProcessor struct {
	deps        Deps
	work        *workingCopy
	subjectCode string

	// course is resolved once per operation.
	courseResolved bool
	course         *Course
}

func newRowProcessor(deps Deps, state State, subjectCode string) *rowProcessor {
	return &rowProcessor{
		deps:        deps,
		work:        newWorkingCopy(state),
		subjectCode: subjectCode,
	}
}

// process validates, conflict-checks and persists one row. err is set for
// failed rows only.
func (p *rowProcessor) process(ctx context.Context, row BulkImportRow) (Outcome, error) {
	if err := ValidateRow(&row, p.deps.ValidateID); err != nil {
		return OutcomeFailed, err
	}

	if _, exists := p.work.student(row.ID); exists {
		return OutcomeDuplicate, nil
	}
	if p.work.enrolls.Has(p.subjectCode, row.ID) {
		return OutcomeAlreadyEnrolled, nil
	}

	created, err := p.deps.Students.AddStudent(ctx, NewStudent{ID: row.ID, Name: row.Name, Email: row.Email})
	if err != nil {
		return OutcomeFailed, err
	}

	course, err := p.resolveCourse(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	student := Student{ID: row.ID, Name: row.Name, Email: row.Email}
	if created != nil {
		student.RecordID = created.RecordID
	}

	if student.RecordID == "" || course == nil || course.ID == "" {
		p.work.addStudent(student)
		return OutcomeCreatedWithoutEnrollment, nil
	}

	if _, err := p.deps.Enrollments.CreateEnrollment(ctx, student.RecordID, course.ID); err != nil {
		return OutcomeFailed, err
	}

	p.work.addStudent(student)
	p.work.enroll(p.subjectCode, student.ID)
	return OutcomeSuccess, nil
}

func (p *rowProcessor) resolveCourse(ctx context.Context) (*Course, error) {
	if p.courseResolved {
		return p.course, nil
	}
	course, err := p.deps.Courses.GetCourseByCode(ctx, p.subjectCode)
	if err != nil {
		return nil, err
	}
	p.course, p.courseResolved = course, true
	return course, nil
}
