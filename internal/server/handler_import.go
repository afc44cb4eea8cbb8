package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/me/timetable/internal/export"
	"github.com/me/timetable/pkg/model"
)

// POST /api/v1/terms/{term}/import.xlsx
//
// The body is a workbook in the export layout. Every sheet becomes a grid that
// is saved as a draft, or published with ?publish=true.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, reqID, http.StatusRequestEntityTooLarge,
				model.NewValidationError("workbook too large"))
			return
		}
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("read body: "+err.Error()))
		return
	}
	if len(data) == 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("empty body"))
		return
	}

	grids, err := export.ReadXLSX(data, scope.Term, s.calendar, s.dir)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}
	if len(grids) == 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("workbook has no sheets"))
		return
	}
	s.logger.Info("workbook imported", "tenant", scope.TenantID, "term", scope.Term, "grids", len(grids))

	op := "save"
	if r.URL.Query().Get("publish") == "true" {
		op = "publish"
	}
	s.commitBatch(w, r, op, grids)
}
