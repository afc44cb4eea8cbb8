package conflict

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/pkg/model"
)

// Detector runs the session-local tier and then the authoritative tier.
//
// The authoritative result wins whenever it reports a conflict. A clean
// authoritative answer deliberately does not clear a session-local conflict:
// grids open in the session may not be saved yet and are invisible to the
// store, so on that disagreement the local result is kept. Draft checks are
// advisory either way; publishing goes through CheckGrid.
type Detector struct {
	calendar model.Calendar
	session  GridSource
	store    Finder
	scope    model.Scope
	dir      directory.Directory
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithSession sets the grids scanned by the session-local tier.
func WithSession(src GridSource) Option {
	return func(d *Detector) { d.session = src }
}

// WithStore enables the authoritative tier against the given scope.
func WithStore(store Finder, scope model.Scope) Option {
	return func(d *Detector) {
		d.store = store
		d.scope = scope
	}
}

// WithDirectory resolves instructor names in messages.
func WithDirectory(dir directory.Directory) Option {
	return func(d *Detector) { d.dir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// New creates a Detector. Without WithStore only the session tier runs.
func New(cal model.Calendar, opts ...Option) *Detector {
	d := &Detector{
		calendar: cal,
		session:  GridSet(nil),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "conflict")
	return d
}

// Query builds the conflict query for an instructor placed at slot of classGroup.
func (d *Detector) Query(classGroup string, slot model.SlotKey, instructorID string) (model.ConflictQuery, error) {
	p, ok := d.calendar.Period(slot.Period)
	if !ok || p.Break || !d.calendar.HasDay(slot.Day) {
		return model.ConflictQuery{}, &model.InvalidSlotError{Slot: slot, Reason: "not a teaching slot"}
	}
	return model.ConflictQuery{
		InstructorID:      instructorID,
		Day:               slot.Day,
		Start:             p.Start,
		End:               p.End,
		ExcludeClassGroup: classGroup,
	}, nil
}

// CheckLocal runs only the session-local tier.
func (d *Detector) CheckLocal(q model.ConflictQuery) model.ConflictResult {
	res, _ := NewLocalChecker(d.calendar, d.session, d.dir).Check(context.Background(), q)
	return res
}

// Authoritative reports whether the store tier is configured.
func (d *Detector) Authoritative() bool { return d.store != nil }

// CheckAuthoritative runs only the store tier.
func (d *Detector) CheckAuthoritative(ctx context.Context, q model.ConflictQuery) (model.ConflictResult, error) {
	if d.store == nil {
		return model.ConflictResult{Tier: model.TierAuthoritative}, nil
	}
	return NewStoreChecker(d.store, d.scope, d.dir).Check(ctx, q)
}

// Check runs both tiers. If the authoritative tier fails, the session-local
// result is returned together with the error.
func (d *Detector) Check(ctx context.Context, q model.ConflictQuery) (model.ConflictResult, error) {
	local := d.CheckLocal(q)
	if d.store == nil {
		return local, nil
	}
	return d.Merge(local, func() (model.ConflictResult, error) { return d.CheckAuthoritative(ctx, q) })
}

// Merge combines a session-local result with the authoritative one.
func (d *Detector) Merge(local model.ConflictResult, authoritative func() (model.ConflictResult, error)) (model.ConflictResult, error) {
	auth, err := authoritative()
	if err != nil {
		d.logger.Warn("authoritative check failed, keeping session result", "error", err)
		return local, err
	}
	if auth.Conflicting || !local.Conflicting {
		return auth, nil
	}
	return local, nil
}

// CheckGrid checks every slot of g that has an instructor against the store
// and against siblings, the other grids committed together with g. Stored rows
// of a sibling's class group are ignored: the sibling's batch version replaces
// them and is checked instead. One SlotConflict is reported per slot and
// competing class group.
func (d *Detector) CheckGrid(ctx context.Context, g *model.Grid, siblings []*model.Grid) ([]model.SlotConflict, error) {
	local := NewLocalChecker(d.calendar, GridSet(siblings), d.dir)
	inBatch := make(map[string]bool, len(siblings))
	for _, s := range siblings {
		if s != nil {
			inBatch[s.ClassGroup] = true
		}
	}
	var auth *StoreChecker
	if d.store != nil {
		auth = NewStoreChecker(d.store, d.scope, d.dir)
	}

	var out []model.SlotConflict
	for _, key := range g.Keys() {
		a := g.Slots[key]
		if !a.HasInstructor() {
			continue
		}
		q, err := d.Query(g.ClassGroup, key, a.InstructorID)
		if err != nil {
			return nil, err
		}

		var rows []model.AssignmentRecord
		if auth != nil {
			stored, err := auth.Find(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", g.ClassGroup, err)
			}
			for _, r := range stored {
				if !inBatch[r.ClassGroup] {
					rows = append(rows, r)
				}
			}
		}
		rows = append(rows, local.Find(q)...)

		seen := map[string]bool{}
		for _, r := range rows {
			if seen[r.ClassGroup] {
				continue
			}
			seen[r.ClassGroup] = true
			out = append(out, model.SlotConflict{
				Slot:                  key,
				InstructorID:          a.InstructorID,
				ConflictingClassGroup: r.ClassGroup,
				Message:               message(d.dir, r),
			})
		}
	}
	return out, nil
}
