package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
)

// studentRequest is the body of POST /subjects/{code}/students.
type studentRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// studentResponse reports the created student and whether it was enrolled.
type studentResponse struct {
	Student  *core.Student `json:"student"`
	Outcome  core.Outcome  `json:"outcome"`
	Enrolled bool          `json:"enrolled"`
}

// handleRoster returns the students enrolled in a subject.
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	students, err := s.svc.Roster.Roster(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if students == nil {
		students = []core.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// handleCreateStudent adds one student to a subject. A student whose course
// could not be resolved is still created and reported as not enrolled.
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	row := core.BulkImportRow{ID: req.ID, Name: req.Name, Email: req.Email}
	student, outcome, err := s.svc.Roster.CreateStudent(r.Context(), row, chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, studentResponse{
		Student:  student,
		Outcome:  outcome,
		Enrolled: outcome == core.OutcomeSuccess,
	})
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Roster.RemoveStudent(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveSubject(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Roster.ArchiveSubject(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
