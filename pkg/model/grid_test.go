package model

import (
	"encoding/json"
	"testing"
)

func TestGridStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to GridStatus
		want     bool
	}{
		{GridStatusDraft, GridStatusPublished, true},
		{GridStatusDraft, GridStatusDraft, false},
		{GridStatusPublished, GridStatusDraft, true},
		{GridStatusPublished, GridStatusPublished, true},
		{GridStatus("archived"), GridStatusDraft, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSlotKey_TextRoundTrip(t *testing.T) {
	g := NewGrid("Grade5A", "2026-T1")
	g.Slots[SlotKey{Day: Monday, Period: 1}] = Assignment{Subject: "Math", InstructorID: "wilson", Source: SourceExplicit}
	g.Slots[SlotKey{Day: Friday, Period: 7}] = Assignment{Subject: "Art"}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Grid
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(got.Slots))
	}
	a := got.Slots[SlotKey{Day: Monday, Period: 1}]
	if a.Subject != "Math" || a.InstructorID != "wilson" || a.Source != SourceExplicit {
		t.Errorf("Monday/1 = %+v", a)
	}
}

func TestSlotKey_UnmarshalTextErrors(t *testing.T) {
	for _, in := range []string{"Monday", "Funday/1", "Monday/x"} {
		var k SlotKey
		if err := k.UnmarshalText([]byte(in)); err == nil {
			t.Errorf("UnmarshalText(%q) succeeded, want error", in)
		}
	}
}

func TestGrid_KeysCalendarOrder(t *testing.T) {
	g := NewGrid("Grade5A", "2026-T1")
	g.Slots[SlotKey{Day: Wednesday, Period: 2}] = Assignment{Subject: "A"}
	g.Slots[SlotKey{Day: Monday, Period: 5}] = Assignment{Subject: "B"}
	g.Slots[SlotKey{Day: Monday, Period: 1}] = Assignment{Subject: "C"}

	keys := g.Keys()
	want := []SlotKey{{Monday, 1}, {Monday, 5}, {Wednesday, 2}}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestGrid_CloneIsDeep(t *testing.T) {
	g := NewGrid("Grade5A", "2026-T1")
	g.Slots[SlotKey{Day: Monday, Period: 1}] = Assignment{Subject: "Math"}
	g.Notes = []string{"n1"}

	c := g.Clone()
	c.Slots[SlotKey{Day: Monday, Period: 2}] = Assignment{Subject: "Art"}
	c.Notes[0] = "changed"

	if len(g.Slots) != 1 {
		t.Errorf("original slots mutated: %d", len(g.Slots))
	}
	if g.Notes[0] != "n1" {
		t.Errorf("original notes mutated: %q", g.Notes[0])
	}
}

func TestBatchResult_Tally(t *testing.T) {
	r := BatchResult{Outcomes: []GridOutcome{
		{ClassGroup: "a", State: OutcomeSaved},
		{ClassGroup: "b", State: OutcomePublished},
		{ClassGroup: "c", State: OutcomeBlocked},
		{ClassGroup: "d", State: OutcomeFailed},
	}}
	r.Tally()
	if r.Succeeded != 2 || r.Failed != 2 {
		t.Errorf("tally = %d/%d, want 2/2", r.Succeeded, r.Failed)
	}
	if o, ok := r.Outcome("c"); !ok || o.State != OutcomeBlocked {
		t.Errorf("Outcome(c) = %+v, %v", o, ok)
	}
}
