package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotKey addresses one (day, period) cell of a grid.
type SlotKey struct {
	Day    Day `json:"day"`
	Period int `json:"period"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%d", k.Day, k.Period)
}

// MarshalText lets SlotKey be used as a JSON object key ("Monday/3").
func (k SlotKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "Day/Period" form.
func (k *SlotKey) UnmarshalText(b []byte) error {
	dayPart, periodPart, ok := strings.Cut(string(b), "/")
	if !ok {
		return fmt.Errorf("invalid slot key %q: want Day/Period", b)
	}
	day, err := ParseDay(dayPart)
	if err != nil {
		return fmt.Errorf("invalid slot key %q: %w", b, err)
	}
	period, err := strconv.Atoi(periodPart)
	if err != nil {
		return fmt.Errorf("invalid slot key %q: bad period", b)
	}
	k.Day = day
	k.Period = period
	return nil
}

// Less orders keys by weekday, then period.
func (k SlotKey) Less(o SlotKey) bool {
	if k.Day != o.Day {
		return k.Day.Index() < o.Day.Index()
	}
	return k.Period < o.Period
}

// SortSlotKeys sorts keys in calendar order.
func SortSlotKeys(keys []SlotKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// AssignmentSource tells whether an instructor was picked by the author or filled in
// automatically.
type AssignmentSource string

const (
	SourceExplicit     AssignmentSource = "explicit"
	SourceAutoResolved AssignmentSource = "auto_resolved"
	SourceGenerated    AssignmentSource = "generated"
)

// Assignment is the content of a non-empty slot. InstructorID may be empty
// (subject without instructor); a subject-less assignment is never stored.
type Assignment struct {
	Subject      string           `json:"subject"`
	InstructorID string           `json:"instructor_id,omitempty"`
	Source       AssignmentSource `json:"source,omitempty"`
}

// HasInstructor reports whether an instructor is attached.
func (a Assignment) HasInstructor() bool {
	return a.InstructorID != ""
}

// GridStatus is the lifecycle state of a schedule grid.
type GridStatus string

const (
	GridStatusDraft     GridStatus = "draft"
	GridStatusPublished GridStatus = "published"
)

// String returns the string representation of the status.
func (s GridStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s GridStatus) Valid() bool {
	return s == GridStatusDraft || s == GridStatusPublished
}

// ValidGridTransitions defines the allowed lifecycle transitions. Published →
// Published is a republish of an edited live grid.
var ValidGridTransitions = map[GridStatus][]GridStatus{
	GridStatusDraft:     {GridStatusPublished},
	GridStatusPublished: {GridStatusPublished, GridStatusDraft},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s GridStatus) CanTransitionTo(next GridStatus) bool {
	for _, allowed := range ValidGridTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Grid is one class group's weekly timetable for a term.
type Grid struct {
	ClassGroup string                 `json:"class_group"`
	Term       string                 `json:"term"`
	Status     GridStatus             `json:"status"`
	Slots      map[SlotKey]Assignment `json:"slots"`
	Notes      []string               `json:"notes,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at,omitempty"`
}

// NewGrid returns an empty draft grid.
func NewGrid(classGroup, term string) *Grid {
	return &Grid{
		ClassGroup: classGroup,
		Term:       term,
		Status:     GridStatusDraft,
		Slots:      map[SlotKey]Assignment{},
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	out := *g
	out.Slots = make(map[SlotKey]Assignment, len(g.Slots))
	for k, v := range g.Slots {
		out.Slots[k] = v
	}
	out.Notes = append([]string(nil), g.Notes...)
	return &out
}

// Keys returns the occupied slot keys in calendar order.
func (g *Grid) Keys() []SlotKey {
	keys := make([]SlotKey, 0, len(g.Slots))
	for k := range g.Slots {
		keys = append(keys, k)
	}
	SortSlotKeys(keys)
	return keys
}

// GridSummary is the list-view form of a grid.
type GridSummary struct {
	ClassGroup string     `json:"class_group"`
	Term       string     `json:"term"`
	Status     GridStatus `json:"status"`
	Slots      int        `json:"slots"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Scope partitions stored data by organization and academic term.
type Scope struct {
	TenantID string `json:"tenant_id"`
	Term     string `json:"term"`
}

// AssignmentRecord is the durable form of one non-empty slot.
type AssignmentRecord struct {
	TenantID     string           `json:"tenant_id" db:"tenant_id"`
	Term         string           `json:"term" db:"term"`
	Day          Day              `json:"day" db:"day"`
	Period       int              `json:"period" db:"period"`
	Start        Clock            `json:"start" db:"start_min"`
	End          Clock            `json:"end" db:"end_min"`
	Subject      string           `json:"subject" db:"subject"`
	ClassGroup   string           `json:"class_group" db:"class_group"`
	InstructorID string           `json:"instructor_id,omitempty" db:"instructor_id"`
	Source       AssignmentSource `json:"source" db:"source"`
	Status       GridStatus       `json:"status" db:"status"`
}

// Key returns the slot the record belongs to.
func (r AssignmentRecord) Key() SlotKey {
	return SlotKey{Day: r.Day, Period: r.Period}
}
