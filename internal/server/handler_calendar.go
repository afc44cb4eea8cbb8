package server

import (
	"net/http"

	"github.com/me/timetable/pkg/model"
)

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.calendar)
}

func (s *Server) handleInstructors(w http.ResponseWriter, r *http.Request) {
	out := []model.InstructorProfile{}
	if s.dir != nil {
		out = s.dir.List()
	}
	respondOK(w, RequestIDFromContext(r.Context()), out)
}
