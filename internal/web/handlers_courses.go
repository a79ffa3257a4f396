package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
)

// handleListCourses returns a professor's courses. ?refresh=true bypasses the cache.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	professorID := chi.URLParam(r, "professorID")

	courses, err := s.svc.Courses.ListCourses(r.Context(), professorID, parseBoolParam(r, "refresh", false))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if courses == nil {
		courses = []core.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var in core.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	course, err := s.svc.Courses.CreateCourse(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var in core.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	course, err := s.svc.Courses.UpdateCourse(r.Context(), chi.URLParam(r, "courseID"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Courses.DeleteCourse(r.Context(), chi.URLParam(r, "courseID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
