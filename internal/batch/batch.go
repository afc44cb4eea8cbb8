// Package batch persists and publishes many grids at once, reporting an
// outcome per grid.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/me/timetable/internal/grid"
	"github.com/me/timetable/internal/lifecycle"
	"github.com/me/timetable/pkg/model"
)

// DefaultConcurrency is the number of grids written at once.
const DefaultConcurrency = 4

// Store is the part of the store the coordinator writes to.
type Store interface {
	ReplaceGrid(ctx context.Context, scope model.Scope, g *model.Grid, records []model.AssignmentRecord) error
}

// Coordinator runs Save and Publish over a batch of grids. Grids are
// processed concurrently and independently: one failure never rolls back
// another grid.
type Coordinator struct {
	store     Store
	lifecycle *lifecycle.Controller
	calendar  model.Calendar
	sem       *semaphore
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds concurrent grid writes. n <= 0 means unlimited.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) { c.sem = newSemaphore(n) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator.
func New(st Store, lc *lifecycle.Controller, cal model.Calendar, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     st,
		lifecycle: lc,
		calendar:  cal,
		sem:       newSemaphore(DefaultConcurrency),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "batch")
	return c
}

// Save writes every grid. Draft grids replace their stored rows as drafts
// without a conflict check. Published grids go through the publish gate, so a
// save can never introduce a published double-booking. The error is a
// *model.PartialBatchFailure when any grid was not committed.
func (c *Coordinator) Save(ctx context.Context, scope model.Scope, grids []*model.Grid) (model.BatchResult, error) {
	return c.run(ctx, scope, grids, "save", func(ctx context.Context, g *model.Grid, siblings []*model.Grid) model.GridOutcome {
		if g.Status == model.GridStatusPublished {
			return c.publishOne(ctx, scope, g, siblings)
		}
		return c.saveOne(ctx, scope, g)
	})
}

// Publish moves every grid to Published through the lifecycle gate. Each grid
// is checked against the store and against the other grids of the batch, and
// is published all-or-nothing on its own. Outcomes are published, blocked
// (with the conflicts) or failed.
func (c *Coordinator) Publish(ctx context.Context, scope model.Scope, grids []*model.Grid) (model.BatchResult, error) {
	return c.run(ctx, scope, grids, "publish", func(ctx context.Context, g *model.Grid, siblings []*model.Grid) model.GridOutcome {
		return c.publishOne(ctx, scope, g, siblings)
	})
}

type gridFunc func(ctx context.Context, g *model.Grid, siblings []*model.Grid) model.GridOutcome

func (c *Coordinator) run(ctx context.Context, scope model.Scope, grids []*model.Grid, op string, fn gridFunc) (model.BatchResult, error) {
	res := model.BatchResult{Outcomes: make([]model.GridOutcome, len(grids))}
	seen := map[string]bool{}

	var wg sync.WaitGroup
	for i, g := range grids {
		if g == nil || g.ClassGroup == "" {
			res.Outcomes[i] = failed("", statusOf(g), fmt.Errorf("class group is required"))
			continue
		}
		if seen[g.ClassGroup] {
			res.Outcomes[i] = failed(g.ClassGroup, statusOf(g), fmt.Errorf("class group %s appears more than once", g.ClassGroup))
			continue
		}
		seen[g.ClassGroup] = true

		siblings := make([]*model.Grid, 0, len(grids)-1)
		for j, other := range grids {
			if j != i && other != nil && other.ClassGroup != g.ClassGroup {
				siblings = append(siblings, other)
			}
		}

		wg.Add(1)
		go func(i int, g *model.Grid, siblings []*model.Grid) {
			defer wg.Done()
			if !c.sem.acquire(ctx) {
				res.Outcomes[i] = failed(g.ClassGroup, statusOf(g), ctx.Err())
				return
			}
			defer c.sem.release()
			res.Outcomes[i] = fn(ctx, g, siblings)
		}(i, g, siblings)
	}
	wg.Wait()

	res.Tally()
	var errs []error
	for _, o := range res.Outcomes {
		if !o.OK() {
			errs = append(errs, o.Err)
		}
	}
	c.logger.Info(op+" batch done", "tenant", scope.TenantID, "term", scope.Term,
		"grids", len(grids), "succeeded", res.Succeeded, "failed", res.Failed)
	if pbf := model.NewPartialBatchFailure(len(grids), errs...); pbf != nil {
		return res, pbf
	}
	return res, nil
}

func (c *Coordinator) saveOne(ctx context.Context, scope model.Scope, g *model.Grid) model.GridOutcome {
	out := g.Clone()
	out.Status = model.GridStatusDraft
	if err := grid.Validate(out, c.calendar); err != nil {
		return failed(g.ClassGroup, out.Status, err)
	}
	if err := c.store.ReplaceGrid(ctx, scope, out, grid.Records(out, c.calendar, scope.TenantID)); err != nil {
		c.logger.Error("save failed", "class_group", g.ClassGroup, "error", err)
		return failed(g.ClassGroup, out.Status, &model.PersistenceError{ClassGroup: g.ClassGroup, Op: "save", Err: err})
	}
	c.logger.Debug("saved", "class_group", g.ClassGroup, "slots", len(out.Slots))
	return model.GridOutcome{ClassGroup: g.ClassGroup, State: model.OutcomeSaved, Status: out.Status}
}

func (c *Coordinator) publishOne(ctx context.Context, scope model.Scope, g *model.Grid, siblings []*model.Grid) model.GridOutcome {
	_, err := c.lifecycle.Publish(ctx, scope, g, siblings)
	if err == nil {
		return model.GridOutcome{ClassGroup: g.ClassGroup, State: model.OutcomePublished, Status: model.GridStatusPublished}
	}
	var pce *model.PublishConflictError
	if errors.As(err, &pce) {
		return model.GridOutcome{
			ClassGroup: g.ClassGroup,
			State:      model.OutcomeBlocked,
			Status:     statusOf(g),
			Conflicts:  pce.Conflicts,
			Error:      err.Error(),
			Err:        err,
		}
	}
	c.logger.Error("publish failed", "class_group", g.ClassGroup, "error", err)
	return failed(g.ClassGroup, statusOf(g), err)
}

func failed(classGroup string, status model.GridStatus, err error) model.GridOutcome {
	return model.GridOutcome{
		ClassGroup: classGroup,
		State:      model.OutcomeFailed,
		Status:     status,
		Error:      err.Error(),
		Err:        err,
	}
}

func statusOf(g *model.Grid) model.GridStatus {
	if g == nil || g.Status == "" {
		return model.GridStatusDraft
	}
	return g.Status
}
