// Package conflict detects instructor double-booking in two tiers: the grids
// open in an editing session, then the persisted assignment store.
package conflict

import (
	"context"
	"fmt"
	"sort"

	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/pkg/model"
)

// Checker answers a single conflict query.
type Checker interface {
	Check(ctx context.Context, q model.ConflictQuery) (model.ConflictResult, error)
}

// Finder is the part of the store the authoritative tier reads.
type Finder interface {
	FindConflicts(ctx context.Context, scope model.Scope, q model.ConflictQuery) ([]model.AssignmentRecord, error)
}

// GridSource exposes the grids currently open together.
type GridSource interface {
	OpenGrids() []*model.Grid
}

// GridSet is a fixed GridSource.
type GridSet []*model.Grid

// OpenGrids implements GridSource.
func (s GridSet) OpenGrids() []*model.Grid { return s }

// message renders the advisory text for a conflicting row.
func message(dir directory.Directory, r model.AssignmentRecord) string {
	return fmt.Sprintf("%s is already teaching %s on %s %s-%s",
		directory.Name(dir, r.InstructorID), r.ClassGroup, r.Day, r.Start, r.End)
}

func result(dir directory.Directory, tier model.ConflictTier, rows []model.AssignmentRecord) model.ConflictResult {
	if len(rows) == 0 {
		return model.ConflictResult{Tier: tier}
	}
	return model.ConflictResult{
		Conflicting:           true,
		ConflictingClassGroup: rows[0].ClassGroup,
		Message:               message(dir, rows[0]),
		Tier:                  tier,
	}
}

// --- Tier 1 ---

// LocalChecker scans the open grids. It performs no I/O.
type LocalChecker struct {
	calendar model.Calendar
	grids    GridSource
	dir      directory.Directory
}

// NewLocalChecker creates a session-local checker.
func NewLocalChecker(cal model.Calendar, grids GridSource, dir directory.Directory) *LocalChecker {
	return &LocalChecker{calendar: cal, grids: grids, dir: dir}
}

// Find returns the open slots, as records, where q.InstructorID teaches during
// an overlapping interval on q.Day in another class group.
func (c *LocalChecker) Find(q model.ConflictQuery) []model.AssignmentRecord {
	if q.InstructorID == "" {
		return nil
	}
	grids := append([]*model.Grid(nil), c.grids.OpenGrids()...)
	sort.Slice(grids, func(i, j int) bool { return grids[i].ClassGroup < grids[j].ClassGroup })

	var out []model.AssignmentRecord
	for _, g := range grids {
		if g.ClassGroup == q.ExcludeClassGroup {
			continue
		}
		for _, key := range g.Keys() {
			a := g.Slots[key]
			if key.Day != q.Day || a.InstructorID != q.InstructorID {
				continue
			}
			p, ok := c.calendar.Period(key.Period)
			if !ok || !model.Overlaps(q.Start, q.End, p.Start, p.End) {
				continue
			}
			out = append(out, model.AssignmentRecord{
				Term: g.Term, Day: key.Day, Period: key.Period, Start: p.Start, End: p.End,
				Subject: a.Subject, ClassGroup: g.ClassGroup, InstructorID: a.InstructorID,
				Source: a.Source, Status: g.Status,
			})
		}
	}
	return out
}

// Check implements Checker. It never fails.
func (c *LocalChecker) Check(_ context.Context, q model.ConflictQuery) (model.ConflictResult, error) {
	return result(c.dir, model.TierSession, c.Find(q)), nil
}

// --- Tier 2 ---

// StoreChecker queries the persisted assignment store of one scope.
type StoreChecker struct {
	store Finder
	scope model.Scope
	dir   directory.Directory
}

// NewStoreChecker creates an authoritative checker.
func NewStoreChecker(store Finder, scope model.Scope, dir directory.Directory) *StoreChecker {
	return &StoreChecker{store: store, scope: scope, dir: dir}
}

// Find returns stored rows of other class groups that overlap q, published first.
func (c *StoreChecker) Find(ctx context.Context, q model.ConflictQuery) ([]model.AssignmentRecord, error) {
	if q.InstructorID == "" {
		return nil, nil
	}
	rows, err := c.store.FindConflicts(ctx, c.scope, q)
	if err != nil {
		return nil, fmt.Errorf("find conflicts for %s on %s: %w", q.InstructorID, q.Day, err)
	}
	return rows, nil
}

// Check implements Checker.
func (c *StoreChecker) Check(ctx context.Context, q model.ConflictQuery) (model.ConflictResult, error) {
	rows, err := c.Find(ctx, q)
	if err != nil {
		return model.ConflictResult{}, err
	}
	return result(c.dir, model.TierAuthoritative, rows), nil
}
