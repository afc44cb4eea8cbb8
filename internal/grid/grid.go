// Package grid implements the editable schedule grid of one class group.
package grid

import (
	"fmt"
	"strings"
	"time"

	"github.com/me/timetable/pkg/model"
)

// Resolver picks a default instructor when a subject lands on a slot that has none.
type Resolver interface {
	Resolve(subject string, slot model.SlotKey) (instructorID string, ok bool)
}

// Grid wraps a model.Grid with the calendar it is laid out on. It is not safe for
// concurrent use; the owning session serializes mutations.
type Grid struct {
	data     *model.Grid
	calendar model.Calendar
	resolver Resolver
	now      func() time.Time
}

// Option configures a Grid.
type Option func(*Grid)

// WithResolver sets the instructor resolver used by SetSlot.
func WithResolver(r Resolver) Option {
	return func(g *Grid) {
		g.resolver = r
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Grid) {
		g.now = now
	}
}

// New creates an empty draft grid.
func New(classGroup, term string, cal model.Calendar, opts ...Option) *Grid {
	return FromModel(model.NewGrid(classGroup, term), cal, opts...)
}

// FromModel wraps an existing grid (loaded from the store or produced by auto-fill).
// The grid is copied.
func FromModel(m *model.Grid, cal model.Calendar, opts ...Option) *Grid {
	data := m.Clone()
	if data.Slots == nil {
		data.Slots = map[model.SlotKey]model.Assignment{}
	}
	if data.Status == "" {
		data.Status = model.GridStatusDraft
	}
	g := &Grid{data: data, calendar: cal, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ClassGroup returns the class group the grid belongs to.
func (g *Grid) ClassGroup() string { return g.data.ClassGroup }

// Term returns the academic term.
func (g *Grid) Term() string { return g.data.Term }

// Status returns the lifecycle status.
func (g *Grid) Status() model.GridStatus { return g.data.Status }

// Calendar returns the period calendar.
func (g *Grid) Calendar() model.Calendar { return g.calendar }

// SetStatus records a lifecycle transition decided by the lifecycle controller.
func (g *Grid) SetStatus(s model.GridStatus) {
	g.data.Status = s
	g.touch()
}

// AddNote appends a validation note.
func (g *Grid) AddNote(note string) {
	g.data.Notes = append(g.data.Notes, note)
}

// Len returns the number of non-empty slots.
func (g *Grid) Len() int { return len(g.data.Slots) }

// Get returns the assignment at a slot.
func (g *Grid) Get(day model.Day, period int) (model.Assignment, bool) {
	a, ok := g.data.Slots[model.SlotKey{Day: day, Period: period}]
	return a, ok
}

// Keys returns the occupied slots in calendar order.
func (g *Grid) Keys() []model.SlotKey { return g.data.Keys() }

// SetSlot places subject on a teaching slot. If the slot had no instructor, the
// resolver may supply one; that choice is tagged auto_resolved and is checked
// for conflicts like any other.
func (g *Grid) SetSlot(day model.Day, period int, subject string) (model.Assignment, error) {
	key := model.SlotKey{Day: day, Period: period}
	if _, err := g.teachingPeriod(key); err != nil {
		return model.Assignment{}, err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return model.Assignment{}, &model.InvalidSlotError{Slot: key, Reason: "subject is empty"}
	}

	a := g.data.Slots[key]
	a.Subject = subject
	if !a.HasInstructor() {
		a.Source = ""
		if g.resolver != nil {
			if id, ok := g.resolver.Resolve(subject, key); ok {
				a.InstructorID = id
				a.Source = model.SourceAutoResolved
			}
		}
	}
	g.data.Slots[key] = a
	g.touch()
	return a, nil
}

// AssignInstructor attaches an instructor to a slot that already has a subject.
func (g *Grid) AssignInstructor(day model.Day, period int, instructorID string) (model.Assignment, error) {
	key := model.SlotKey{Day: day, Period: period}
	if _, err := g.teachingPeriod(key); err != nil {
		return model.Assignment{}, err
	}
	a, ok := g.data.Slots[key]
	if !ok || a.Subject == "" {
		return model.Assignment{}, &model.EmptySlotError{Slot: key}
	}
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return model.Assignment{}, &model.InvalidSlotError{Slot: key, Reason: "instructor id is empty"}
	}
	a.InstructorID = instructorID
	a.Source = model.SourceExplicit
	g.data.Slots[key] = a
	g.touch()
	return a, nil
}

// Place stores a complete assignment, as produced by the generator.
func (g *Grid) Place(day model.Day, period int, a model.Assignment) error {
	key := model.SlotKey{Day: day, Period: period}
	if _, err := g.teachingPeriod(key); err != nil {
		return err
	}
	if a.Subject == "" {
		return &model.EmptySlotError{Slot: key}
	}
	g.data.Slots[key] = a
	g.touch()
	return nil
}

// ClearSlot removes subject and instructor together. Clearing an empty slot is a no-op.
func (g *Grid) ClearSlot(day model.Day, period int) error {
	key := model.SlotKey{Day: day, Period: period}
	if _, err := g.slotPeriod(key); err != nil {
		return err
	}
	if _, ok := g.data.Slots[key]; !ok {
		return nil
	}
	delete(g.data.Slots, key)
	g.touch()
	return nil
}

// Snapshot returns an independent copy of the grid.
func (g *Grid) Snapshot() *model.Grid {
	return g.data.Clone()
}

// Interval returns the start and end time of a period.
func (g *Grid) Interval(period int) (model.Clock, model.Clock, bool) {
	p, ok := g.calendar.Period(period)
	if !ok {
		return 0, 0, false
	}
	return p.Start, p.End, true
}

// Records converts the non-empty slots to persisted rows.
func (g *Grid) Records(tenantID string) []model.AssignmentRecord {
	return Records(g.data, g.calendar, tenantID)
}

// Records converts a grid's non-empty slots to persisted rows in calendar order.
// Slots that no longer map to a calendar period are skipped.
func Records(m *model.Grid, cal model.Calendar, tenantID string) []model.AssignmentRecord {
	out := make([]model.AssignmentRecord, 0, len(m.Slots))
	for _, key := range m.Keys() {
		p, ok := cal.Period(key.Period)
		if !ok {
			continue
		}
		a := m.Slots[key]
		out = append(out, model.AssignmentRecord{
			TenantID:     tenantID,
			Term:         m.Term,
			Day:          key.Day,
			Period:       key.Period,
			Start:        p.Start,
			End:          p.End,
			Subject:      a.Subject,
			ClassGroup:   m.ClassGroup,
			InstructorID: a.InstructorID,
			Source:       a.Source,
			Status:       m.Status,
		})
	}
	return out
}

// Validate checks every stored slot against the calendar.
func Validate(m *model.Grid, cal model.Calendar) error {
	for _, key := range m.Keys() {
		a := m.Slots[key]
		p, ok := cal.Period(key.Period)
		switch {
		case !cal.HasDay(key.Day):
			return &model.InvalidSlotError{Slot: key, Reason: "day is not in the calendar"}
		case !ok:
			return &model.InvalidSlotError{Slot: key, Reason: "unknown period"}
		case p.Break:
			return &model.InvalidSlotError{Slot: key, Reason: fmt.Sprintf("%s is a break", p.Name)}
		case a.Subject == "":
			return &model.EmptySlotError{Slot: key}
		}
	}
	return nil
}

func (g *Grid) slotPeriod(key model.SlotKey) (model.Period, error) {
	if !g.calendar.HasDay(key.Day) {
		return model.Period{}, &model.InvalidSlotError{Slot: key, Reason: "day is not in the calendar"}
	}
	p, ok := g.calendar.Period(key.Period)
	if !ok {
		return model.Period{}, &model.InvalidSlotError{Slot: key, Reason: "unknown period"}
	}
	return p, nil
}

func (g *Grid) teachingPeriod(key model.SlotKey) (model.Period, error) {
	p, err := g.slotPeriod(key)
	if err != nil {
		return p, err
	}
	if p.Break {
		return p, &model.InvalidSlotError{Slot: key, Reason: fmt.Sprintf("%s is a break", p.Name)}
	}
	return p, nil
}

func (g *Grid) touch() {
	g.data.UpdatedAt = g.now().UTC()
}
