package server

import (
	"net/http"

	"github.com/me/timetable/internal/conflict"
	"github.com/me/timetable/internal/session"
	"github.com/me/timetable/pkg/model"
)

// handleEdits replays a list of slot edits in a throwaway session and returns
// the resulting grids with their advisories. Nothing is persisted.
// POST /api/v1/terms/{term}/edits
func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var req model.EditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, reqID, err)
		return
	}
	if len(req.Edits) == 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("no edits", model.FieldError{Field: "edits", Message: "at least one edit is required"}))
		return
	}

	opts := []session.Option{session.WithStore(s.store), session.WithLogger(s.logger)}
	if s.dir != nil {
		opts = append(opts, session.WithDirectory(s.dir))
	}
	if res := s.resolver(); res != nil {
		opts = append(opts, session.WithResolver(res))
	}
	sess := session.New(scope, s.calendar, opts...)

	opened := map[string]bool{}
	for _, g := range req.Grids {
		if g == nil {
			continue
		}
		g.Term = scope.Term
		if g.Slots == nil {
			g.Slots = map[model.SlotKey]model.Assignment{}
		}
		if err := sess.Open(g); err != nil {
			respondErr(w, reqID, err)
			return
		}
		opened[g.ClassGroup] = true
	}
	for _, e := range req.Edits {
		if e.ClassGroup == "" || opened[e.ClassGroup] {
			continue
		}
		opened[e.ClassGroup] = true
		stored, err := s.store.GetGrid(r.Context(), scope, e.ClassGroup)
		if err != nil {
			respondErr(w, reqID, err)
			return
		}
		if stored != nil {
			if err := sess.Open(stored); err != nil {
				respondErr(w, reqID, err)
				return
			}
		}
	}

	results := sess.ApplyAll(r.Context(), req.Edits)
	respondOK(w, reqID, model.EditResponse{Grids: sess.OpenGrids(), Results: results})
}

// handleCheckConflict runs both detector tiers for one placement.
// POST /api/v1/terms/{term}/conflicts/check
func (s *Server) handleCheckConflict(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var req model.CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, reqID, err)
		return
	}
	var fields []model.FieldError
	if req.ClassGroup == "" {
		fields = append(fields, model.FieldError{Field: "class_group", Message: "required"})
	}
	if req.InstructorID == "" {
		fields = append(fields, model.FieldError{Field: "instructor_id", Message: "required"})
	}
	if len(fields) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing fields", fields...))
		return
	}

	open := make(conflict.GridSet, 0, len(req.Grids))
	for _, g := range req.Grids {
		if g != nil {
			open = append(open, g)
		}
	}
	opts := []conflict.Option{
		conflict.WithSession(open),
		conflict.WithStore(s.store, scope),
		conflict.WithLogger(s.logger),
	}
	if s.dir != nil {
		opts = append(opts, conflict.WithDirectory(s.dir))
	}
	det := conflict.New(s.calendar, opts...)

	q, err := det.Query(req.ClassGroup, model.SlotKey{Day: req.Day, Period: req.Period}, req.InstructorID)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	// An unreachable store degrades to the session-local answer; Check logs it.
	res, _ := det.Check(r.Context(), q)
	respondOK(w, reqID, res)
}
