package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/me/timetable/internal/store"
	"github.com/me/timetable/pkg/model"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondPartial writes a batch result in which some grids failed. The data
// carries every per-grid outcome.
func respondPartial(w http.ResponseWriter, reqID string, data any, apiErr *model.APIError) {
	respondJSON(w, http.StatusMultiStatus, reqID, data, nil, apiErr)
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// respondErr maps a domain error to its HTTP status and envelope.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	var (
		apiErr     *model.APIError
		slotErr    *model.InvalidSlotError
		emptyErr   *model.EmptySlotError
		transErr   *model.InvalidTransitionError
		publishErr *model.PublishConflictError
	)
	switch {
	case errors.As(err, &apiErr):
		respondError(w, reqID, statusForCode(apiErr.Code), apiErr)
	case errors.As(err, &slotErr), errors.As(err, &emptyErr):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.As(err, &transErr):
		respondError(w, reqID, http.StatusConflict, &model.APIError{Code: model.ErrConflict, Message: err.Error()})
	case errors.As(err, &publishErr):
		details := make([]model.FieldError, 0, len(publishErr.Conflicts))
		for _, c := range publishErr.Conflicts {
			details = append(details, model.FieldError{Field: c.Slot.String(), Message: c.Message})
		}
		respondError(w, reqID, http.StatusConflict, &model.APIError{Code: model.ErrConflict, Message: err.Error(), Details: details})
	case errors.Is(err, store.ErrNotFound):
		respondError(w, reqID, http.StatusNotFound, &model.APIError{Code: model.ErrNotFound, Message: err.Error()})
	default:
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
	}
}

func statusForCode(code model.ErrorCode) int {
	switch code {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
