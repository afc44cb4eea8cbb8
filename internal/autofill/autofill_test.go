package autofill

import (
	"context"
	"strings"
	"testing"

	"github.com/me/timetable/pkg/model"
)

var (
	lee    = model.InstructorProfile{ID: "lee", Employment: model.PartTime, AvailableDays: []model.Day{model.Monday, model.Wednesday}, Specializations: []string{"Art"}}
	wilson = model.InstructorProfile{ID: "wilson", Employment: model.FullTime, Specializations: []string{"Math"}}
	adams  = model.InstructorProfile{ID: "adams", Employment: model.FullTime, Specializations: []string{"Math", "Science"}}
)

func hasWarning(v Validation, substr string) bool {
	for _, w := range v.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

// A part-time specialist available Monday and Wednesday is the only Art teacher.
func TestGreedy_PartTimeOnlySpecialist(t *testing.T) {
	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup:    "Grade5A",
		Term:          "2026-T1",
		Subjects:      []string{"Art"},
		Instructors:   []model.InstructorProfile{lee},
		Days:          model.Weekdays,
		PeriodsPerDay: 2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for key, id := range res.Assignments {
		if id == "lee" && key.Day != model.Monday && key.Day != model.Wednesday {
			t.Errorf("lee placed on %s", key)
		}
	}
	for _, day := range []model.Day{model.Tuesday, model.Thursday, model.Friday} {
		for _, p := range []int{1, 2} {
			if a, ok := res.Grid.Slots[model.SlotKey{Day: day, Period: p}]; ok {
				t.Errorf("%s/%d = %+v, want empty", day, p, a)
			}
		}
	}
	if len(res.Assignments) != 4 {
		t.Errorf("assignments = %d, want 4 (Mon and Wed, two periods)", len(res.Assignments))
	}
	if !hasWarning(res.Validation, "no eligible instructor for Art") {
		t.Errorf("warnings = %v", res.Validation.Warnings)
	}
	if !res.Validation.HardConstraintsSatisfied {
		t.Error("hard constraints reported unsatisfied")
	}
	if res.Grid.Status != model.GridStatusDraft {
		t.Errorf("status = %s, want draft", res.Grid.Status)
	}
}

func TestGreedy_PrefersSpecialist(t *testing.T) {
	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup:    "Grade5A",
		Subjects:      []string{"Science"},
		Instructors:   []model.InstructorProfile{wilson, adams},
		Days:          []model.Day{model.Monday},
		PeriodsPerDay: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Assignments[model.SlotKey{Day: model.Monday, Period: 1}]; got != "adams" {
		t.Errorf("Science went to %q, want adams", got)
	}
	if hasWarning(res.Validation, "outside their specialization") {
		t.Errorf("unexpected warning: %v", res.Validation.Warnings)
	}
}

func TestGreedy_NonSpecialistFallbackWarns(t *testing.T) {
	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup:    "Grade5A",
		Subjects:      []string{"History"},
		Instructors:   []model.InstructorProfile{wilson},
		Days:          []model.Day{model.Monday},
		PeriodsPerDay: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Assignments) != 1 || !hasWarning(res.Validation, "outside their specialization") {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerateBatch_NoDoubleBooking(t *testing.T) {
	reqs := []Request{
		{ClassGroup: "Grade5A", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{wilson, adams}, PeriodsPerDay: 3},
		{ClassGroup: "Grade5B", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{wilson, adams}, PeriodsPerDay: 3},
		{ClassGroup: "Grade5C", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{wilson, adams}, PeriodsPerDay: 3},
	}
	results, err := GenerateBatch(context.Background(), NewGreedy(), nil, reqs)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[model.SlotKey]map[string]bool{}
	for _, res := range results {
		for key, id := range res.Assignments {
			if seen[key] == nil {
				seen[key] = map[string]bool{}
			}
			if seen[key][id] {
				t.Errorf("%s double-booked at %s", id, key)
			}
			seen[key][id] = true
		}
		if !res.Validation.HardConstraintsSatisfied {
			t.Errorf("%s: %v", res.Grid.ClassGroup, res.Validation.Warnings)
		}
	}
	// Only two Math teachers exist, so the third group is left empty.
	if len(results[2].Assignments) != 0 || !hasWarning(results[2].Validation, "no eligible instructor") {
		t.Errorf("Grade5C = %+v", results[2])
	}
}

func TestGreedy_RespectsSeededOccupancy(t *testing.T) {
	occ := NewOccupancy()
	published := model.NewGrid("Grade6A", "2026-T1")
	published.Slots[model.SlotKey{Day: model.Monday, Period: 1}] = model.Assignment{Subject: "Math", InstructorID: "wilson"}
	occ.AddGrid(published)

	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup: "Grade5A", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{wilson},
		Days: []model.Day{model.Monday}, PeriodsPerDay: 2, Occupancy: occ,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Assignments[model.SlotKey{Day: model.Monday, Period: 1}]; ok {
		t.Error("wilson double-booked against seeded grid")
	}
	if res.Assignments[model.SlotKey{Day: model.Monday, Period: 2}] != "wilson" {
		t.Errorf("assignments = %v", res.Assignments)
	}
}

func TestGreedy_WorkloadWarning(t *testing.T) {
	capped := model.InstructorProfile{ID: "khan", Specializations: []string{"Math"}, MaxWeeklyPeriods: 2}
	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup: "Grade5A", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{capped},
		Days: []model.Day{model.Monday}, PeriodsPerDay: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Assignments) != 4 || !hasWarning(res.Validation, "exceeds the weekly limit") {
		t.Errorf("result = %+v", res.Validation)
	}
	if !res.Validation.HardConstraintsSatisfied {
		t.Error("soft constraint reported as hard")
	}
}

func TestGreedy_PeriodsPerDayClamped(t *testing.T) {
	res, err := NewGreedy().Generate(context.Background(), Request{
		ClassGroup: "Grade5A", Subjects: []string{"Math"}, Instructors: []model.InstructorProfile{wilson},
		Days: []model.Day{model.Monday}, PeriodsPerDay: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Grid.Slots) != len(model.DefaultCalendar().TeachingPeriods()) {
		t.Errorf("slots = %d", len(res.Grid.Slots))
	}
	if !hasWarning(res.Validation, "periods per day") {
		t.Errorf("warnings = %v", res.Validation.Warnings)
	}
	for key := range res.Grid.Slots {
		if key.Period == 4 || key.Period == 8 {
			t.Errorf("break period %s filled", key)
		}
	}
}

func TestGreedy_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"no class group", Request{Subjects: []string{"Math"}}},
		{"no subjects", Request{ClassGroup: "G", Subjects: []string{" "}}},
		{"day outside calendar", Request{ClassGroup: "G", Subjects: []string{"Math"}, Days: []model.Day{model.Sunday}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGreedy().Generate(context.Background(), tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExprScorer(t *testing.T) {
	s, err := NewExprScorer("partTime ? 1 : load")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Score(Candidate{Instructor: wilson, Load: 7})
	if err != nil || got != 7 {
		t.Errorf("Score = %v, %v; want 7", got, err)
	}
	got, _ = s.Score(Candidate{Instructor: lee, Load: 7})
	if got != 1 {
		t.Errorf("part-time Score = %v, want 1", got)
	}

	if _, err := NewExprScorer("specialist ? ("); err == nil {
		t.Error("syntax error accepted")
	}
	str, _ := NewExprScorer("subject")
	if _, err := str.Score(Candidate{Subject: "Math"}); err == nil {
		t.Error("string result accepted")
	}
}

func TestGreedy_WithExprScorer(t *testing.T) {
	// Prefer the least specialized instructor.
	scorer, err := NewExprScorer("specialist ? 0 : 10")
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewGreedy(WithScorer(scorer)).Generate(context.Background(), Request{
		ClassGroup: "Grade5A", Subjects: []string{"Science"}, Instructors: []model.InstructorProfile{adams, wilson},
		Days: []model.Day{model.Monday}, PeriodsPerDay: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Assignments[model.SlotKey{Day: model.Monday, Period: 1}]; got != "wilson" {
		t.Errorf("picked %q, want wilson", got)
	}
}
