// Package lifecycle moves grids between Draft and Published.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/me/timetable/internal/conflict"
	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/internal/grid"
	"github.com/me/timetable/internal/logging"
	"github.com/me/timetable/internal/store"
	"github.com/me/timetable/pkg/model"
)

// Store is the part of store.Store the controller uses.
type Store interface {
	conflict.Finder
	ReplaceGrid(ctx context.Context, scope model.Scope, g *model.Grid, records []model.AssignmentRecord) error
	GetGrid(ctx context.Context, scope model.Scope, classGroup string) (*model.Grid, error)
	SetGridStatus(ctx context.Context, scope model.Scope, classGroup string, status model.GridStatus) error
}

// EventSink receives lifecycle events. Dispatch must not block.
type EventSink interface {
	Dispatch(ev model.Event)
}

// Controller gates the Published status on the authoritative conflict check.
type Controller struct {
	store    Store
	calendar model.Calendar
	dir      directory.Directory
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithDirectory resolves instructor names in conflict messages.
func WithDirectory(dir directory.Directory) Option {
	return func(c *Controller) { c.dir = dir }
}

// WithEvents sets the sink for published and unpublished events.
func WithEvents(sink EventSink) Option {
	return func(c *Controller) { c.events = sink }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller.
func New(st Store, cal model.Calendar, opts ...Option) *Controller {
	c := &Controller{
		store:    st,
		calendar: cal,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "lifecycle")
	return c
}

// Detector returns an authoritative conflict detector for scope.
func (c *Controller) Detector(scope model.Scope) *conflict.Detector {
	return conflict.New(c.calendar,
		conflict.WithStore(c.store, scope),
		conflict.WithDirectory(c.dir),
		conflict.WithLogger(c.logger),
	)
}

// Publish checks every instructor slot of g against the store and against
// siblings (grids committed in the same batch), then stores g as published.
// On any conflict it returns *model.PublishConflictError and nothing is
// written; the stored grid keeps its previous status. Republishing an already
// published grid goes through the same gate.
func (c *Controller) Publish(ctx context.Context, scope model.Scope, g *model.Grid, siblings []*model.Grid) (*model.Grid, error) {
	from := g.Status
	if from == "" {
		from = model.GridStatusDraft
	}
	if !from.CanTransitionTo(model.GridStatusPublished) {
		return nil, &model.InvalidTransitionError{ClassGroup: g.ClassGroup, From: from, To: model.GridStatusPublished}
	}
	if err := grid.Validate(g, c.calendar); err != nil {
		return nil, err
	}

	conflicts, err := c.Detector(scope).CheckGrid(ctx, g, siblings)
	if err != nil {
		return nil, &model.PersistenceError{ClassGroup: g.ClassGroup, Op: "conflict check", Err: err}
	}
	if len(conflicts) > 0 {
		c.logger.Info("publish blocked", "class_group", g.ClassGroup, "conflicts", len(conflicts))
		return nil, &model.PublishConflictError{ClassGroup: g.ClassGroup, Conflicts: conflicts}
	}

	out := g.Clone()
	out.Status = model.GridStatusPublished
	out.UpdatedAt = c.now().UTC()
	if err := c.store.ReplaceGrid(ctx, scope, out, grid.Records(out, c.calendar, scope.TenantID)); err != nil {
		var taken *store.SlotTakenError
		if errors.As(err, &taken) {
			// Another commit won the race after our check.
			holder := taken.Holder
			if holder == "" {
				holder = "another class group"
			}
			return nil, &model.PublishConflictError{ClassGroup: g.ClassGroup, Conflicts: []model.SlotConflict{{
				Slot:                  taken.Slot,
				InstructorID:          taken.InstructorID,
				ConflictingClassGroup: holder,
				Message: fmt.Sprintf("%s was published in %s by %s first",
					directory.Name(c.dir, taken.InstructorID), taken.Slot, holder),
			}}}
		}
		return nil, &model.PersistenceError{ClassGroup: g.ClassGroup, Op: "publish", Err: err}
	}

	c.logger.Log(ctx, logging.LevelAudit, "grid published",
		"tenant", scope.TenantID, "term", scope.Term, "class_group", g.ClassGroup, "from", from, "slots", len(out.Slots))
	c.emit(model.EventGridPublished, scope, g.ClassGroup)
	return out, nil
}

// Unpublish returns a published grid to Draft. Rows are kept.
func (c *Controller) Unpublish(ctx context.Context, scope model.Scope, classGroup string) (*model.Grid, error) {
	g, err := c.store.GetGrid(ctx, scope, classGroup)
	if err != nil {
		return nil, &model.PersistenceError{ClassGroup: classGroup, Op: "load", Err: err}
	}
	if g == nil {
		return nil, fmt.Errorf("grid %s: %w", classGroup, store.ErrNotFound)
	}
	if !g.Status.CanTransitionTo(model.GridStatusDraft) {
		return nil, &model.InvalidTransitionError{ClassGroup: classGroup, From: g.Status, To: model.GridStatusDraft}
	}
	if err := c.store.SetGridStatus(ctx, scope, classGroup, model.GridStatusDraft); err != nil {
		return nil, &model.PersistenceError{ClassGroup: classGroup, Op: "unpublish", Err: err}
	}
	g.Status = model.GridStatusDraft
	g.UpdatedAt = c.now().UTC()

	c.logger.Log(ctx, logging.LevelAudit, "grid unpublished",
		"tenant", scope.TenantID, "term", scope.Term, "class_group", classGroup)
	c.emit(model.EventGridUnpublished, scope, classGroup)
	return g, nil
}

func (c *Controller) emit(kind model.EventKind, scope model.Scope, classGroup string) {
	if c.events == nil {
		return
	}
	c.events.Dispatch(model.Event{
		Kind:       kind,
		TenantID:   scope.TenantID,
		Term:       scope.Term,
		ClassGroup: classGroup,
		OccurredAt: c.now().UTC(),
	})
}
