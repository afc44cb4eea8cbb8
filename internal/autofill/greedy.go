package autofill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/me/timetable/pkg/model"
)

// Greedy fills slots in calendar order, picking the best-scored eligible
// instructor for each. It never backtracks.
type Greedy struct {
	scorer Scorer
	logger *slog.Logger
}

// Option configures Greedy.
type Option func(*Greedy)

// WithScorer replaces DefaultScorer.
func WithScorer(s Scorer) Option {
	return func(g *Greedy) { g.scorer = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Greedy) { g.logger = logger }
}

// NewGreedy creates the default strategy.
func NewGreedy(opts ...Option) *Greedy {
	g := &Greedy{
		scorer: DefaultScorer{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "autofill")
	return g
}

// Generate implements Strategy.
func (s *Greedy) Generate(ctx context.Context, req Request) (*Result, error) {
	plan, warnings, err := planSlots(req)
	if err != nil {
		return nil, err
	}
	occ := req.Occupancy
	if occ == nil {
		occ = NewOccupancy()
	}
	// Holders before this grid, for re-validation.
	prior := map[model.SlotKey]map[string]string{}
	for _, ps := range plan {
		for _, in := range req.Instructors {
			if cg, busy := occ.Holder(ps.slot, in.ID); busy {
				if prior[ps.slot] == nil {
					prior[ps.slot] = map[string]string{}
				}
				prior[ps.slot][in.ID] = cg
			}
		}
	}

	grid := model.NewGrid(req.ClassGroup, req.Term)
	assignments := map[model.SlotKey]string{}
	overloaded := map[string]bool{}
	for _, ps := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, ok, err := s.pick(req, occ, ps)
		if err != nil {
			return nil, err
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: no eligible instructor for %s, slot left empty", ps.slot, ps.subject))
			continue
		}
		if !best.Specialist {
			warnings = append(warnings, fmt.Sprintf("%s: %s teaches %s outside their specialization", ps.slot, best.Instructor.ID, ps.subject))
		}
		if best.OverLimit() && !overloaded[best.Instructor.ID] {
			overloaded[best.Instructor.ID] = true
			warnings = append(warnings, fmt.Sprintf("%s exceeds the weekly limit of %d periods", best.Instructor.ID, best.Instructor.WeeklyLimit()))
		}
		grid.Slots[ps.slot] = model.Assignment{
			Subject:      ps.subject,
			InstructorID: best.Instructor.ID,
			Source:       model.SourceGenerated,
		}
		assignments[ps.slot] = best.Instructor.ID
		occ.Reserve(ps.slot, best.Instructor.ID, req.ClassGroup)
	}

	violations := validateHard(grid, req.Instructors, prior)
	res := &Result{
		Grid:        grid,
		Assignments: assignments,
		Validation: Validation{
			Warnings:                 append(warnings, violations...),
			HardConstraintsSatisfied: len(violations) == 0,
		},
	}
	if res.Validation.Warnings == nil {
		res.Validation.Warnings = []string{}
	}
	s.logger.Debug("generated", "class_group", req.ClassGroup, "slots", len(grid.Slots),
		"planned", len(plan), "warnings", len(res.Validation.Warnings))
	return res, nil
}

func (s *Greedy) pick(req Request, occ *Occupancy, ps plannedSlot) (Candidate, bool, error) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, in := range req.Instructors {
		if !in.AvailableOn(ps.slot.Day) {
			continue
		}
		if _, busy := occ.Holder(ps.slot, in.ID); busy {
			continue
		}
		c := Candidate{
			Instructor: in,
			Subject:    ps.subject,
			Slot:       ps.slot,
			Load:       occ.Load(in.ID),
			Specialist: in.Teaches(ps.subject),
		}
		score, err := s.scorer.Score(c)
		if err != nil {
			return Candidate{}, false, fmt.Errorf("score %s: %w", in.ID, err)
		}
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found, nil
}

type plannedSlot struct {
	slot    model.SlotKey
	subject string
}

// planSlots lays subjects over the first PeriodsPerDay teaching periods of each
// day, rotating the starting subject per day.
func planSlots(req Request) ([]plannedSlot, []string, error) {
	var warnings []string
	if strings.TrimSpace(req.ClassGroup) == "" {
		return nil, nil, fmt.Errorf("class group is required")
	}
	subjects := make([]string, 0, len(req.Subjects))
	for _, subj := range req.Subjects {
		if subj = strings.TrimSpace(subj); subj != "" {
			subjects = append(subjects, subj)
		}
	}
	if len(subjects) == 0 {
		return nil, nil, fmt.Errorf("at least one subject is required")
	}

	cal := req.Calendar
	if len(cal.Periods) == 0 {
		cal = model.DefaultCalendar()
	}
	days := req.Days
	if len(days) == 0 {
		days = cal.Days
	}
	for _, d := range days {
		if !cal.HasDay(d) {
			return nil, nil, fmt.Errorf("day %s is not in the calendar", d)
		}
	}
	days = append([]model.Day(nil), days...)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Index() < days[j].Index() })

	teaching := cal.TeachingPeriods()
	n := req.PeriodsPerDay
	switch {
	case n <= 0:
		n = len(teaching)
	case n > len(teaching):
		warnings = append(warnings, fmt.Sprintf("periods per day %d exceeds the %d teaching periods, using %d", n, len(teaching), len(teaching)))
		n = len(teaching)
	}

	plan := make([]plannedSlot, 0, len(days)*n)
	for di, d := range days {
		for pi := 0; pi < n; pi++ {
			plan = append(plan, plannedSlot{
				slot:    model.SlotKey{Day: d, Period: teaching[pi].Ordinal},
				subject: subjects[(di+pi)%len(subjects)],
			})
		}
	}
	return plan, warnings, nil
}

// validateHard re-checks generator output. prior holds instructors that were
// already busy before this grid was generated.
func validateHard(g *model.Grid, instructors []model.InstructorProfile, prior map[model.SlotKey]map[string]string) []string {
	byID := make(map[string]model.InstructorProfile, len(instructors))
	for _, in := range instructors {
		byID[in.ID] = in
	}
	var violations []string
	for _, key := range g.Keys() {
		a := g.Slots[key]
		if !a.HasInstructor() {
			continue
		}
		in, ok := byID[a.InstructorID]
		switch {
		case !ok:
			violations = append(violations, fmt.Sprintf("%s: unknown instructor %s", key, a.InstructorID))
		case !in.AvailableOn(key.Day):
			violations = append(violations, fmt.Sprintf("%s: %s is not available on %s", key, in.ID, key.Day))
		}
		if cg, busy := prior[key][a.InstructorID]; busy {
			violations = append(violations, fmt.Sprintf("%s: %s is already teaching %s", key, a.InstructorID, cg))
		}
	}
	return violations
}
