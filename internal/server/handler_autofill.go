package server

import (
	"net/http"

	"github.com/me/timetable/internal/autofill"
	"github.com/me/timetable/pkg/model"
)

// AutofillRequest generates one or more grids together. Requests without
// instructors use the directory. Scorer is an optional expression replacing
// the default candidate ranking. With Save set, the generated drafts are
// stored through the batch coordinator.
type AutofillRequest struct {
	Requests []autofill.Request `json:"requests"`
	Scorer   string             `json:"scorer,omitempty"`
	Save     bool               `json:"save,omitempty"`
}

// AutofillResponse carries one result per request, plus the save outcome.
type AutofillResponse struct {
	Results []*autofill.Result `json:"results"`
	Saved   *model.BatchResult `json:"saved,omitempty"`
}

// handleAutofill generates drafts that avoid every instructor already placed
// in the term's stored grids.
// POST /api/v1/terms/{term}/autofill
func (s *Server) handleAutofill(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var req AutofillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, reqID, err)
		return
	}
	if len(req.Requests) == 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("no requests", model.FieldError{Field: "requests", Message: "at least one request is required"}))
		return
	}

	strategy := s.strategy
	if req.Scorer != "" {
		scorer, err := autofill.NewExprScorer(req.Scorer)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid scorer", model.FieldError{Field: "scorer", Message: err.Error()}))
			return
		}
		strategy = autofill.NewGreedy(autofill.WithScorer(scorer), autofill.WithLogger(s.logger))
	}

	generating := map[string]bool{}
	for i := range req.Requests {
		rq := &req.Requests[i]
		rq.Term = scope.Term
		rq.Calendar = s.calendar
		if len(rq.Instructors) == 0 && s.dir != nil {
			rq.Instructors = s.dir.List()
		}
		generating[rq.ClassGroup] = true
	}

	// Seed with every stored placement outside the grids being regenerated.
	occ := autofill.NewOccupancy()
	records, err := s.store.ListRecords(r.Context(), scope, "")
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	for _, rec := range records {
		if rec.InstructorID != "" && !generating[rec.ClassGroup] {
			occ.Reserve(rec.Key(), rec.InstructorID, rec.ClassGroup)
		}
	}

	results, err := autofill.GenerateBatch(r.Context(), strategy, occ, req.Requests)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}
	resp := AutofillResponse{Results: results}

	if req.Save {
		grids := make([]*model.Grid, 0, len(results))
		for _, res := range results {
			grids = append(grids, res.Grid)
		}
		saved, err := s.batch.Save(r.Context(), scope, grids)
		resp.Saved = &saved
		if err != nil {
			respondPartial(w, reqID, resp, &model.APIError{Code: model.ErrInternal, Message: err.Error()})
			return
		}
	}
	respondOK(w, reqID, resp)
}
