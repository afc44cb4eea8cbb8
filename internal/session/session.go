// Package session holds the grids an author edits together and runs the
// conflict advisories for every edit.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/me/timetable/internal/conflict"
	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/internal/grid"
	"github.com/me/timetable/pkg/model"
)

// Session is safe for concurrent use. The lock is released while the
// authoritative check runs, so other edits proceed; the slot being checked is
// marked provisional until the answer arrives.
type Session struct {
	scope    model.Scope
	calendar model.Calendar
	store    conflict.Finder
	dir      directory.Directory
	resolver grid.Resolver
	logger   *slog.Logger

	mu          sync.Mutex
	grids       map[string]*grid.Grid
	provisional map[string]map[model.SlotKey]int
}

// Option configures a Session.
type Option func(*Session)

// WithStore enables authoritative checks.
func WithStore(st conflict.Finder) Option {
	return func(s *Session) { s.store = st }
}

// WithDirectory resolves instructor names in advisories.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Session) { s.dir = dir }
}

// WithResolver supplies default instructors on SetSlot.
func WithResolver(r grid.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates an empty session for scope.
func New(scope model.Scope, cal model.Calendar, opts ...Option) *Session {
	s := &Session{
		scope:       scope,
		calendar:    cal,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		grids:       map[string]*grid.Grid{},
		provisional: map[string]map[model.SlotKey]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "tenant", scope.TenantID, "term", scope.Term)
	return s
}

// Open adds g to the session, replacing any open grid of the same class group.
func (s *Session) Open(g *model.Grid) error {
	if g.ClassGroup == "" {
		return fmt.Errorf("class group is required")
	}
	if err := grid.Validate(g, s.calendar); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[g.ClassGroup] = grid.FromModel(g, s.calendar, s.gridOptions()...)
	return nil
}

// Grid returns a snapshot of an open grid.
func (s *Session) Grid(classGroup string) (*model.Grid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grids[classGroup]
	if !ok {
		return nil, false
	}
	return g.Snapshot(), true
}

// OpenGrids returns snapshots of every open grid ordered by class group.
func (s *Session) OpenGrids() []*model.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Provisional lists the slots of classGroup still awaiting an authoritative answer.
func (s *Session) Provisional(classGroup string) []model.SlotKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SlotKey
	for k := range s.provisional[classGroup] {
		out = append(out, k)
	}
	model.SortSlotKeys(out)
	return out
}

// ApplyAll applies edits in order.
func (s *Session) ApplyAll(ctx context.Context, edits []model.SlotEdit) []model.EditResult {
	out := make([]model.EditResult, 0, len(edits))
	for _, e := range edits {
		out = append(out, s.Apply(ctx, e))
	}
	return out
}

// Apply performs one edit. Structural errors are reported in the result and
// leave the grid unchanged. A conflict is an advisory, never an error.
// Editing a class group that is not open opens an empty draft for it.
func (s *Session) Apply(ctx context.Context, e model.SlotEdit) model.EditResult {
	res := model.EditResult{Edit: e}
	key := model.SlotKey{Day: e.Day, Period: e.Period}

	s.mu.Lock()
	if e.ClassGroup == "" {
		s.mu.Unlock()
		res.Error = model.NewValidationError("class group is required", model.FieldError{Field: "class_group", Message: "required"})
		return res
	}
	g, ok := s.grids[e.ClassGroup]
	if !ok {
		g = grid.New(e.ClassGroup, s.scope.Term, s.calendar, s.gridOptions()...)
		s.grids[e.ClassGroup] = g
	}

	var (
		a   model.Assignment
		err error
	)
	switch e.Op {
	case model.EditSet:
		a, err = g.SetSlot(e.Day, e.Period, e.Subject)
		if err == nil && e.InstructorID != "" {
			a, err = g.AssignInstructor(e.Day, e.Period, e.InstructorID)
		}
	case model.EditAssign:
		a, err = g.AssignInstructor(e.Day, e.Period, e.InstructorID)
	case model.EditClear:
		err = g.ClearSlot(e.Day, e.Period)
		if err == nil {
			delete(s.provisional[e.ClassGroup], key)
		}
		s.mu.Unlock()
		if err != nil {
			res.Error = model.NewValidationError(err.Error(), model.FieldError{Field: "slot", Message: err.Error()})
		}
		return res
	default:
		err = fmt.Errorf("unknown edit op %q", e.Op)
	}
	if err != nil {
		s.mu.Unlock()
		res.Error = model.NewValidationError(err.Error(), model.FieldError{Field: "slot", Message: err.Error()})
		return res
	}
	res.Assignment = &a
	if !a.HasInstructor() {
		s.mu.Unlock()
		return res
	}

	det := conflict.New(s.calendar,
		conflict.WithSession(conflict.GridSet(s.snapshotLocked())),
		conflict.WithDirectory(s.dir),
	)
	q, qerr := det.Query(e.ClassGroup, key, a.InstructorID)
	if qerr != nil {
		s.mu.Unlock()
		res.Error = model.NewValidationError(qerr.Error())
		return res
	}
	local := det.CheckLocal(q)
	if s.store == nil {
		s.mu.Unlock()
		res.Advisory = advisory(local)
		return res
	}
	s.markProvisional(e.ClassGroup, key)
	s.mu.Unlock()

	// Suspension point: other edits may run while the store answers.
	auth := conflict.New(s.calendar, conflict.WithStore(s.store, s.scope), conflict.WithDirectory(s.dir))
	merged, err := auth.Merge(local, func() (model.ConflictResult, error) { return auth.CheckAuthoritative(ctx, q) })
	if err != nil {
		s.logger.Warn("authoritative check unavailable", "class_group", e.ClassGroup, "slot", key, "error", err)
	}

	s.mu.Lock()
	s.unmarkProvisional(e.ClassGroup, key)
	s.mu.Unlock()

	res.Advisory = advisory(merged)
	return res
}

func advisory(r model.ConflictResult) *model.ConflictResult {
	if !r.Conflicting {
		return nil
	}
	return &r
}

func (s *Session) gridOptions() []grid.Option {
	if s.resolver == nil {
		return nil
	}
	return []grid.Option{grid.WithResolver(s.resolver)}
}

func (s *Session) snapshotLocked() []*model.Grid {
	out := make([]*model.Grid, 0, len(s.grids))
	for _, g := range s.grids {
		out = append(out, g.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassGroup < out[j].ClassGroup })
	return out
}

// Several edits of the same slot may be in flight, hence the counter.
func (s *Session) markProvisional(classGroup string, key model.SlotKey) {
	if s.provisional[classGroup] == nil {
		s.provisional[classGroup] = map[model.SlotKey]int{}
	}
	s.provisional[classGroup][key]++
}

func (s *Session) unmarkProvisional(classGroup string, key model.SlotKey) {
	m := s.provisional[classGroup]
	if m[key] <= 1 {
		delete(m, key)
		return
	}
	m[key]--
}
