package autofill

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/me/timetable/pkg/model"
)

// Candidate is an instructor being considered for one slot.
type Candidate struct {
	Instructor model.InstructorProfile
	Subject    string
	Slot       model.SlotKey
	Load       int // slots already reserved this week
	Specialist bool
}

// OverLimit reports whether one more slot would exceed the weekly limit.
func (c Candidate) OverLimit() bool {
	return c.Load >= c.Instructor.WeeklyLimit()
}

// Scorer ranks candidates; the highest score wins.
type Scorer interface {
	Score(c Candidate) (float64, error)
}

// DefaultScorer prefers specialists, then instructors under their weekly
// limit, then the least loaded.
type DefaultScorer struct{}

// Score implements Scorer.
func (DefaultScorer) Score(c Candidate) (float64, error) {
	score := -float64(c.Load)
	if c.Specialist {
		score += 1000
	}
	if c.OverLimit() {
		score -= 500
	}
	return score, nil
}

// ExprScorer evaluates a JavaScript expression per candidate. The expression
// sees specialist, load, maxLoad, partTime, day, period and subject, and must
// return a number.
type ExprScorer struct {
	src  string
	prog *goja.Program

	mu sync.Mutex
	vm *goja.Runtime
}

// NewExprScorer compiles expr.
func NewExprScorer(expr string) (*ExprScorer, error) {
	prog, err := goja.Compile("score", expr, true)
	if err != nil {
		return nil, fmt.Errorf("compile score expression: %w", err)
	}
	return &ExprScorer{src: expr, prog: prog, vm: goja.New()}, nil
}

// Score implements Scorer.
func (s *ExprScorer) Score(c Candidate) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars := map[string]any{
		"specialist": c.Specialist,
		"load":       c.Load,
		"maxLoad":    c.Instructor.WeeklyLimit(),
		"partTime":   c.Instructor.Employment == model.PartTime,
		"day":        string(c.Slot.Day),
		"period":     c.Slot.Period,
		"subject":    c.Subject,
	}
	for k, v := range vars {
		if err := s.vm.Set(k, v); err != nil {
			return 0, fmt.Errorf("set %s: %w", k, err)
		}
	}
	v, err := s.vm.RunProgram(s.prog)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", s.src, err)
	}
	switch v.Export().(type) {
	case int64, float64:
		return v.ToFloat(), nil
	case bool:
		if v.ToBoolean() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("score expression %q returned %s, want a number", s.src, v.String())
}
