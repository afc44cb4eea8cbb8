package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/timetable/pkg/model"
)

// sseHeartbeat keeps idle connections open through proxies.
const sseHeartbeat = 15 * time.Second

// handleEvents streams publish and unpublish events via Server-Sent Events.
// Only events of the caller's tenant are sent; ?term= narrows them further.
// GET /api/v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.broker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("event stream", "events"))
		return
	}
	tenant := TenantFromContext(r.Context())
	term := r.URL.Query().Get("term")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	events, cancel := s.broker.Subscribe(16)
	defer cancel()

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.TenantID != tenant || (term != "" && ev.Term != term) {
				continue
			}
			if err := sendSSEEvent(w, flusher, string(ev.Kind), ev); err != nil {
				s.logger.Debug("sse client disconnected", "error", err)
				return
			}
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
