package model

import (
	"errors"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "grid 'Grade5A' not found"}
	want := "NOT_FOUND: grid 'Grade5A' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("grid", "Grade5A")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "grid 'Grade5A' not found" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "grids", Message: "required"},
		FieldError{Field: "term", Message: "required"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{ClassGroup: "Grade5A", From: GridStatusDraft, To: GridStatusDraft}
	want := "invalid grid status transition: draft → draft (class group Grade5A)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPublishConflictError_NamesGroupsOnce(t *testing.T) {
	err := &PublishConflictError{
		ClassGroup: "Grade5A",
		Conflicts: []SlotConflict{
			{Slot: SlotKey{Monday, 1}, InstructorID: "wilson", ConflictingClassGroup: "Grade5B"},
			{Slot: SlotKey{Monday, 2}, InstructorID: "wilson", ConflictingClassGroup: "Grade5B"},
			{Slot: SlotKey{Tuesday, 1}, InstructorID: "khan", ConflictingClassGroup: "Grade6A"},
		},
	}
	got := err.Error()
	if !strings.Contains(got, "3 conflicting slot(s)") {
		t.Errorf("Error() = %q", got)
	}
	if strings.Count(got, "Grade5B") != 1 || !strings.Contains(got, "Grade6A") {
		t.Errorf("Error() = %q, want each group once", got)
	}
}

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{ClassGroup: "Grade5A", Op: "replace", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestPartialBatchFailure(t *testing.T) {
	if NewPartialBatchFailure(3, nil, nil) != nil {
		t.Fatal("all-nil errors should yield nil")
	}

	e1 := &PersistenceError{ClassGroup: "a", Op: "replace", Err: errors.New("boom")}
	e2 := &PersistenceError{ClassGroup: "b", Op: "replace", Err: errors.New("bang")}
	pbf := NewPartialBatchFailure(3, e1, nil, e2)
	if pbf == nil {
		t.Fatal("expected failure")
	}
	if pbf.Failed != 2 || pbf.Total != 3 {
		t.Errorf("failed/total = %d/%d, want 2/3", pbf.Failed, pbf.Total)
	}
	if !strings.HasPrefix(pbf.Error(), "2 of 3 grids failed") {
		t.Errorf("Error() = %q", pbf.Error())
	}

	var pe *PersistenceError
	if !errors.As(pbf, &pe) {
		t.Error("errors.As should find a PersistenceError")
	}
}
