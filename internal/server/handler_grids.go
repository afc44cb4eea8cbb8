package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/timetable/internal/export"
	"github.com/me/timetable/pkg/model"
)

func (s *Server) handleListGrids(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		opts.Status = model.GridStatus(status)
		if !opts.Status.Valid() {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid status", model.FieldError{Field: "status", Message: "want draft or published"}))
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Clamp()

	grids, total, err := s.store.ListGrids(r.Context(), scopeFor(r), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	respondList(w, reqID, grids, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	class := chi.URLParam(r, "class")

	g, err := s.store.GetGrid(r.Context(), scopeFor(r), class)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if g == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("grid", class))
		return
	}
	respondOK(w, reqID, g)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	class := chi.URLParam(r, "class")

	g, err := s.lifecycle.Unpublish(r.Context(), scopeFor(r), class)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, g)
}

func (s *Server) handleExportGrid(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	class := chi.URLParam(r, "class")

	g, err := s.store.GetGrid(r.Context(), scopeFor(r), class)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if g == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("grid", class))
		return
	}
	s.writeWorkbook(w, reqID, fmt.Sprintf("%s-%s.xlsx", g.Term, export.SheetName(class)), []*model.Grid{g})
}

func (s *Server) handleExportTerm(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	scope := scopeFor(r)

	var grids []*model.Grid
	opts := model.ListOptions{Limit: 200}
	for {
		page, total, err := s.store.ListGrids(r.Context(), scope, opts)
		if err != nil {
			respondErr(w, reqID, err)
			return
		}
		for _, sum := range page {
			g, err := s.store.GetGrid(r.Context(), scope, sum.ClassGroup)
			if err != nil {
				respondErr(w, reqID, err)
				return
			}
			if g != nil {
				grids = append(grids, g)
			}
		}
		opts.Offset += len(page)
		if len(page) == 0 || opts.Offset >= total {
			break
		}
	}
	if len(grids) == 0 {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("term", scope.Term))
		return
	}
	s.writeWorkbook(w, reqID, scope.Term+".xlsx", grids)
}

func (s *Server) writeWorkbook(w http.ResponseWriter, reqID, filename string, grids []*model.Grid) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, grids, s.calendar, s.dir); err != nil {
		respondErr(w, reqID, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
