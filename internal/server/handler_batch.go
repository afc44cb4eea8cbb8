package server

import (
	"net/http"

	"github.com/me/timetable/pkg/model"
)

// POST /api/v1/terms/{term}/batch/save
func (s *Server) handleBatchSave(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, "save")
}

// POST /api/v1/terms/{term}/batch/publish
func (s *Server) handleBatchPublish(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, "publish")
}

// handleBatch answers 200 when every grid committed and 207 with the
// per-grid outcomes otherwise.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, op string) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var req model.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, reqID, err)
		return
	}
	if len(req.Grids) == 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("no grids", model.FieldError{Field: "grids", Message: "at least one grid is required"}))
		return
	}
	for _, g := range req.Grids {
		if g == nil {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("null grid in batch"))
			return
		}
		g.Term = scope.Term
		if g.Status == "" {
			g.Status = model.GridStatusDraft
		}
		if g.Slots == nil {
			g.Slots = map[model.SlotKey]model.Assignment{}
		}
	}

	s.commitBatch(w, r, op, req.Grids)
}

// commitBatch saves or publishes grids and writes the batch response.
func (s *Server) commitBatch(w http.ResponseWriter, r *http.Request, op string, grids []*model.Grid) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var (
		res model.BatchResult
		err error
	)
	if op == "publish" {
		res, err = s.batch.Publish(r.Context(), scope, grids)
	} else {
		res, err = s.batch.Save(r.Context(), scope, grids)
	}
	if err != nil {
		code := model.ErrInternal
		for _, o := range res.Outcomes {
			if o.State == model.OutcomeBlocked {
				code = model.ErrConflict
				break
			}
		}
		respondPartial(w, reqID, res, &model.APIError{Code: code, Message: err.Error()})
		return
	}
	respondOK(w, reqID, res)
}
