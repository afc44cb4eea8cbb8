package conflict

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/me/timetable/internal/directory"
	"github.com/me/timetable/pkg/model"
)

type fakeFinder struct {
	rows []model.AssignmentRecord
	err  error
	got  []model.ConflictQuery
}

func (f *fakeFinder) FindConflicts(_ context.Context, _ model.Scope, q model.ConflictQuery) ([]model.AssignmentRecord, error) {
	f.got = append(f.got, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.AssignmentRecord
	for _, r := range f.rows {
		if r.InstructorID == q.InstructorID && r.Day == q.Day && r.ClassGroup != q.ExcludeClassGroup &&
			model.Overlaps(q.Start, q.End, r.Start, r.End) {
			out = append(out, r)
		}
	}
	return out, nil
}

var scope = model.Scope{TenantID: "school-1", Term: "2026-T1"}

func gridWith(classGroup string, slots map[model.SlotKey]model.Assignment) *model.Grid {
	g := model.NewGrid(classGroup, scope.Term)
	for k, a := range slots {
		g.Slots[k] = a
	}
	return g
}

func mon(p int) model.SlotKey { return model.SlotKey{Day: model.Monday, Period: p} }

func storedRow(classGroup string, key model.SlotKey, instructor string, status model.GridStatus) model.AssignmentRecord {
	p, _ := model.DefaultCalendar().Period(key.Period)
	return model.AssignmentRecord{
		TenantID: scope.TenantID, Term: scope.Term, Day: key.Day, Period: key.Period,
		Start: p.Start, End: p.End, Subject: "Math", ClassGroup: classGroup,
		InstructorID: instructor, Status: status,
	}
}

func testDirectory(t *testing.T) directory.Directory {
	t.Helper()
	d, err := directory.New([]model.InstructorProfile{{ID: "wilson", Name: "Ms. Wilson"}})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// Two grids edited together assign the same instructor to Monday period 1.
func TestLocal_SameSessionDoubleBooking(t *testing.T) {
	cal := model.DefaultCalendar()
	a := gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})
	b := gridWith("Grade5B", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})

	d := New(cal, WithSession(GridSet{a, b}), WithDirectory(testDirectory(t)))
	q, err := d.Query("Grade5B", mon(1), "wilson")
	if err != nil {
		t.Fatal(err)
	}
	res := d.CheckLocal(q)
	if !res.Conflicting || res.ConflictingClassGroup != "Grade5A" || res.Tier != model.TierSession {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Message, "Ms. Wilson") {
		t.Errorf("message = %q, want instructor name", res.Message)
	}
}

func TestLocal_NoConflict(t *testing.T) {
	cal := model.DefaultCalendar()
	a := gridWith("Grade5A", map[model.SlotKey]model.Assignment{
		mon(1):                          {Subject: "Math", InstructorID: "wilson"},
		{Day: model.Tuesday, Period: 2}: {Subject: "Math", InstructorID: "wilson"},
	})
	d := New(cal, WithSession(GridSet{a}))

	tests := []struct {
		name string
		cg   string
		slot model.SlotKey
		who  string
	}{
		{"own class group excluded", "Grade5A", mon(1), "wilson"},
		{"adjacent period", "Grade5B", mon(2), "wilson"},
		{"different instructor", "Grade5B", mon(1), "khan"},
		{"different day", "Grade5B", model.SlotKey{Day: model.Wednesday, Period: 1}, "wilson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := d.Query(tt.cg, tt.slot, tt.who)
			if err != nil {
				t.Fatal(err)
			}
			if res := d.CheckLocal(q); res.Conflicting {
				t.Errorf("unexpected conflict: %+v", res)
			}
		})
	}
}

func TestQuery_RejectsBreak(t *testing.T) {
	d := New(model.DefaultCalendar())
	var invalid *model.InvalidSlotError
	if _, err := d.Query("Grade5A", mon(4), "wilson"); !errors.As(err, &invalid) {
		t.Errorf("error = %v, want InvalidSlotError", err)
	}
}

func TestCheck_AuthoritativeWins(t *testing.T) {
	cal := model.DefaultCalendar()
	session := GridSet{gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})}
	finder := &fakeFinder{rows: []model.AssignmentRecord{storedRow("Grade6C", mon(1), "wilson", model.GridStatusPublished)}}

	d := New(cal, WithSession(session), WithStore(finder, scope))
	q, _ := d.Query("Grade5B", mon(1), "wilson")
	res, err := d.Check(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if res.Tier != model.TierAuthoritative || res.ConflictingClassGroup != "Grade6C" {
		t.Errorf("result = %+v, want authoritative Grade6C", res)
	}
	if len(finder.got) != 1 || finder.got[0].ExcludeClassGroup != "Grade5B" {
		t.Errorf("store queried with %+v", finder.got)
	}
}

func TestCheck_CleanStoreKeepsUnsavedSessionConflict(t *testing.T) {
	cal := model.DefaultCalendar()
	session := GridSet{gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})}
	d := New(cal, WithSession(session), WithStore(&fakeFinder{}, scope))

	q, _ := d.Query("Grade5B", mon(1), "wilson")
	res, err := d.Check(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Conflicting || res.Tier != model.TierSession {
		t.Errorf("result = %+v, want session conflict", res)
	}
}

func TestCheck_AuthoritativeFailureReturnsLocal(t *testing.T) {
	cal := model.DefaultCalendar()
	session := GridSet{gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})}
	boom := errors.New("db down")
	d := New(cal, WithSession(session), WithStore(&fakeFinder{err: boom}, scope))

	q, _ := d.Query("Grade5B", mon(1), "wilson")
	res, err := d.Check(context.Background(), q)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want db down", err)
	}
	if !res.Conflicting || res.Tier != model.TierSession {
		t.Errorf("fallback result = %+v", res)
	}
}

func TestCheckGrid_StoreAndSiblings(t *testing.T) {
	cal := model.DefaultCalendar()
	a := gridWith("Grade5A", map[model.SlotKey]model.Assignment{
		mon(1): {Subject: "Math", InstructorID: "wilson"},
		mon(2): {Subject: "Art"},
		mon(3): {Subject: "Math", InstructorID: "khan"},
	})
	b := gridWith("Grade5B", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})
	finder := &fakeFinder{rows: []model.AssignmentRecord{
		storedRow("Grade5B", mon(1), "wilson", model.GridStatusDraft),
		storedRow("Grade6A", mon(3), "khan", model.GridStatusPublished),
	}}

	d := New(cal, WithStore(finder, scope))
	got, err := d.CheckGrid(context.Background(), a, []*model.Grid{b})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("conflicts = %+v, want 2", got)
	}
	if got[0].Slot != mon(1) || got[0].ConflictingClassGroup != "Grade5B" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Slot != mon(3) || got[1].ConflictingClassGroup != "Grade6A" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestCheckGrid_SiblingReplacesStoredRows(t *testing.T) {
	a := gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})
	b := gridWith("Grade5B", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "jones"}})
	finder := &fakeFinder{rows: []model.AssignmentRecord{
		storedRow("Grade5B", mon(1), "wilson", model.GridStatusDraft),
	}}

	d := New(model.DefaultCalendar(), WithStore(finder, scope))
	got, err := d.CheckGrid(context.Background(), a, []*model.Grid{b})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("conflicts = %+v, want none", got)
	}

	got, _ = d.CheckGrid(context.Background(), a, nil)
	if len(got) != 1 || got[0].ConflictingClassGroup != "Grade5B" {
		t.Errorf("without sibling = %+v, want stored Grade5B row", got)
	}
}

func TestCheckGrid_StoreError(t *testing.T) {
	a := gridWith("Grade5A", map[model.SlotKey]model.Assignment{mon(1): {Subject: "Math", InstructorID: "wilson"}})
	d := New(model.DefaultCalendar(), WithStore(&fakeFinder{err: errors.New("timeout")}, scope))
	if _, err := d.CheckGrid(context.Background(), a, nil); err == nil {
		t.Error("expected error")
	}
}
