package model

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the timetable API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// InvalidTransitionError is returned when a lifecycle transition is not allowed.
type InvalidTransitionError struct {
	ClassGroup string
	From       GridStatus
	To         GridStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid grid status transition: %s → %s (class group %s)", e.From, e.To, e.ClassGroup)
}

// InvalidSlotError rejects a mutation aimed at a break period or a slot outside
// the calendar.
type InvalidSlotError struct {
	Slot   SlotKey
	Reason string
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("invalid slot %s: %s", e.Slot, e.Reason)
}

// EmptySlotError rejects an instructor assignment on a slot without a subject.
type EmptySlotError struct {
	Slot SlotKey
}

func (e *EmptySlotError) Error() string {
	return fmt.Sprintf("slot %s has no subject; set a subject before assigning an instructor", e.Slot)
}

// PublishConflictError blocks a grid's publish. It carries every conflicting slot.
type PublishConflictError struct {
	ClassGroup string
	Conflicts  []SlotConflict
}

func (e *PublishConflictError) Error() string {
	groups := make([]string, 0, len(e.Conflicts))
	seen := map[string]bool{}
	for _, c := range e.Conflicts {
		if !seen[c.ConflictingClassGroup] {
			seen[c.ConflictingClassGroup] = true
			groups = append(groups, c.ConflictingClassGroup)
		}
	}
	return fmt.Sprintf("publish %s blocked: %d conflicting slot(s) with %s",
		e.ClassGroup, len(e.Conflicts), strings.Join(groups, ", "))
}

// PersistenceError is a storage failure on one grid.
type PersistenceError struct {
	ClassGroup string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.ClassGroup, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PartialBatchFailure reports that some grids of a batch failed.
type PartialBatchFailure struct {
	Total  int
	Failed int
	Errs   error
}

// NewPartialBatchFailure combines the per-grid errors. It returns nil when errs
// are all nil.
func NewPartialBatchFailure(total int, errs ...error) *PartialBatchFailure {
	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}
	return &PartialBatchFailure{
		Total:  total,
		Failed: len(multierr.Errors(combined)),
		Errs:   combined,
	}
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d of %d grids failed: %v", e.Failed, e.Total, e.Errs)
}

// Unwrap exposes every per-grid error to errors.Is and errors.As.
func (e *PartialBatchFailure) Unwrap() []error {
	return multierr.Errors(e.Errs)
}
