// Package autofill generates draft grids from subjects and instructor profiles.
package autofill

import (
	"context"
	"fmt"
	"sync"

	"github.com/me/timetable/pkg/model"
)

// Request describes one grid to generate.
type Request struct {
	ClassGroup    string                    `json:"class_group"`
	Term          string                    `json:"term"`
	Subjects      []string                  `json:"subjects"`
	Instructors   []model.InstructorProfile `json:"instructors"`
	Days          []model.Day               `json:"days,omitempty"`
	PeriodsPerDay int                       `json:"periods_per_day,omitempty"`

	Calendar model.Calendar `json:"-"`
	// Occupancy is shared by grids generated together. Nil means a fresh one.
	Occupancy *Occupancy `json:"-"`
}

// Validation reports how well the output meets the constraints.
type Validation struct {
	Warnings                 []string `json:"warnings"`
	HardConstraintsSatisfied bool     `json:"hard_constraints_satisfied"`
}

// Result is the generator output. Grid is always a draft.
type Result struct {
	Grid        *model.Grid              `json:"grid"`
	Assignments map[model.SlotKey]string `json:"assignments"`
	Validation  Validation               `json:"validation"`
}

// Strategy is a pluggable generation algorithm.
type Strategy interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Occupancy tracks which instructor is busy in which slot and the weekly load
// of each instructor, across every grid generated together.
type Occupancy struct {
	mu   sync.Mutex
	busy map[model.SlotKey]map[string]string
	load map[string]int
}

// NewOccupancy returns an empty tracker.
func NewOccupancy() *Occupancy {
	return &Occupancy{
		busy: map[model.SlotKey]map[string]string{},
		load: map[string]int{},
	}
}

// AddGrid records the instructors of an existing grid, such as a published
// grid the new ones must not collide with.
func (o *Occupancy) AddGrid(g *model.Grid) {
	for _, key := range g.Keys() {
		if a := g.Slots[key]; a.HasInstructor() {
			o.Reserve(key, a.InstructorID, g.ClassGroup)
		}
	}
}

// Reserve marks instructorID busy at slot for classGroup.
func (o *Occupancy) Reserve(slot model.SlotKey, instructorID, classGroup string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[slot] == nil {
		o.busy[slot] = map[string]string{}
	}
	o.busy[slot][instructorID] = classGroup
	o.load[instructorID]++
}

// Holder returns the class group instructorID is teaching at slot, if any.
func (o *Occupancy) Holder(slot model.SlotKey, instructorID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cg, ok := o.busy[slot][instructorID]
	return cg, ok
}

// Load returns the number of slots reserved for instructorID.
func (o *Occupancy) Load(instructorID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load[instructorID]
}

// GenerateBatch generates several grids in order, sharing occ between them.
// A nil occ starts empty.
func GenerateBatch(ctx context.Context, s Strategy, occ *Occupancy, reqs []Request) ([]*Result, error) {
	if occ == nil {
		occ = NewOccupancy()
	}
	out := make([]*Result, 0, len(reqs))
	for _, req := range reqs {
		req.Occupancy = occ
		res, err := s.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", req.ClassGroup, err)
		}
		out = append(out, res)
	}

	// Re-check the batch as a whole: no instructor twice in one slot.
	seen := map[model.SlotKey]map[string]string{}
	for _, res := range out {
		for _, key := range res.Grid.Keys() {
			a := res.Grid.Slots[key]
			if !a.HasInstructor() {
				continue
			}
			if seen[key] == nil {
				seen[key] = map[string]string{}
			}
			if other, dup := seen[key][a.InstructorID]; dup {
				res.Validation.HardConstraintsSatisfied = false
				res.Validation.Warnings = append(res.Validation.Warnings,
					fmt.Sprintf("%s: %s is also placed in %s", key, a.InstructorID, other))
				continue
			}
			seen[key][a.InstructorID] = res.Grid.ClassGroup
		}
	}
	return out, nil
}
