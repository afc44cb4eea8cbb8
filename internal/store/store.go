package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/me/timetable/pkg/model"
)

// ErrSlotTaken is matched (errors.Is) when a published commit would double-book
// an instructor. The storage layer enforces it with a unique index.
var ErrSlotTaken = errors.New("instructor already published in this slot")

// SlotTakenError identifies the record that lost the race. Holder is the class
// group already published in the slot, when the backend can tell.
type SlotTakenError struct {
	InstructorID string
	Slot         model.SlotKey
	Holder       string
}

func (e *SlotTakenError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("%v: %s at %s (held by %s)", ErrSlotTaken, e.InstructorID, e.Slot, e.Holder)
	}
	return fmt.Sprintf("%v: %s at %s", ErrSlotTaken, e.InstructorID, e.Slot)
}

func (e *SlotTakenError) Is(target error) bool {
	return target == ErrSlotTaken
}

// Store defines the persisted assignment store. Every call is partitioned by
// scope (tenant + term); the tenant is trusted as given.
type Store interface {
	// Grids
	ReplaceGrid(ctx context.Context, scope model.Scope, g *model.Grid, records []model.AssignmentRecord) error
	GetGrid(ctx context.Context, scope model.Scope, classGroup string) (*model.Grid, error)
	ListGrids(ctx context.Context, scope model.Scope, opts model.ListOptions) ([]model.GridSummary, int, error)
	SetGridStatus(ctx context.Context, scope model.Scope, classGroup string, status model.GridStatus) error

	// Assignment rows
	FindConflicts(ctx context.Context, scope model.Scope, q model.ConflictQuery) ([]model.AssignmentRecord, error)
	ListRecords(ctx context.Context, scope model.Scope, status model.GridStatus) ([]model.AssignmentRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
