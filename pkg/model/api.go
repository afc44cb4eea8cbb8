package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures grid list queries.
type ListOptions struct {
	Limit  int
	Offset int
	Status GridStatus // optional filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, Offset: 0}
}

// Clamp enforces limits (max 200, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// SlotEdit is one mutation applied to a grid in an editing session.
type SlotEdit struct {
	ClassGroup   string `json:"class_group"`
	Op           string `json:"op"` // set, assign, clear
	Day          Day    `json:"day"`
	Period       int    `json:"period"`
	Subject      string `json:"subject,omitempty"`
	InstructorID string `json:"instructor_id,omitempty"`
}

// Slot edit operations.
const (
	EditSet    = "set"
	EditAssign = "assign"
	EditClear  = "clear"
)

// EditResult reports the outcome of one SlotEdit.
type EditResult struct {
	Edit       SlotEdit        `json:"edit"`
	Assignment *Assignment     `json:"assignment,omitempty"`
	Advisory   *ConflictResult `json:"advisory,omitempty"`
	Error      *APIError       `json:"error,omitempty"`
}

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventGridPublished   EventKind = "grid.published"
	EventGridUnpublished EventKind = "grid.unpublished"
)

// Event is sent to notification sinks when a grid's visibility changes.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	Term       string    `json:"term"`
	ClassGroup string    `json:"class_group"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EditRequest applies edits to grids edited together. Grids not listed are
// loaded from storage, or started empty.
type EditRequest struct {
	Grids []*Grid    `json:"grids,omitempty"`
	Edits []SlotEdit `json:"edits"`
}

// EditResponse returns the edited grids and one result per edit.
type EditResponse struct {
	Grids   []*Grid      `json:"grids"`
	Results []EditResult `json:"results"`
}

// CheckRequest asks whether placing an instructor in a slot collides with
// another class group. Grids are the author's unsaved grids.
type CheckRequest struct {
	ClassGroup   string  `json:"class_group"`
	Day          Day     `json:"day"`
	Period       int     `json:"period"`
	InstructorID string  `json:"instructor_id"`
	Grids        []*Grid `json:"grids,omitempty"`
}

// BatchRequest carries the grids of a batch save or publish.
type BatchRequest struct {
	Grids []*Grid `json:"grids"`
}
