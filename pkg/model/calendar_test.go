package model

import (
	"encoding/json"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"08:00", 480, false},
		{"8:05", 485, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClock_JSON(t *testing.T) {
	p := Period{Ordinal: 1, Name: "Period 1", Start: MustClock("08:00"), End: MustClock("08:45")}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"ordinal":1,"name":"Period 1","start":"08:00","end":"08:45"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	var back Period
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != p {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}

func TestOverlaps(t *testing.T) {
	c := MustClock
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd Clock
		want                       bool
	}{
		{"equal", c("08:00"), c("08:45"), c("08:00"), c("08:45"), true},
		{"partial", c("08:00"), c("08:45"), c("08:30"), c("09:15"), true},
		{"contained", c("08:00"), c("10:00"), c("08:30"), c("09:00"), true},
		{"touching", c("08:00"), c("08:45"), c("08:45"), c("09:30"), false},
		{"disjoint", c("08:00"), c("08:45"), c("13:00"), c("13:45"), false},
	}
	for _, tt := range tests {
		if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
			t.Errorf("%s: Overlaps = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseDay(t *testing.T) {
	tests := map[string]Day{"monday": Monday, "TUE": Tuesday, " Friday ": Friday, "sun": Sunday}
	for in, want := range tests {
		got, err := ParseDay(in)
		if err != nil || got != want {
			t.Errorf("ParseDay(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDay("mo"); err == nil {
		t.Error("ParseDay(mo) succeeded, want error")
	}
}

func TestDefaultCalendar(t *testing.T) {
	cal := DefaultCalendar()
	if err := cal.Validate(); err != nil {
		t.Fatalf("default calendar invalid: %v", err)
	}
	if len(cal.Periods) != 10 {
		t.Errorf("periods = %d, want 10", len(cal.Periods))
	}
	if n := len(cal.TeachingPeriods()); n != 8 {
		t.Errorf("teaching periods = %d, want 8", n)
	}
	breaks := 0
	for _, p := range cal.Periods {
		if p.Break {
			breaks++
		}
	}
	if breaks != 2 {
		t.Errorf("breaks = %d, want 2", breaks)
	}
	if p, ok := cal.Period(4); !ok || !p.Break {
		t.Errorf("period 4 = %+v, want morning break", p)
	}
	if len(cal.Days) != 5 || !cal.HasDay(Friday) || cal.HasDay(Saturday) {
		t.Errorf("days = %v", cal.Days)
	}
}

func TestCalendar_ValidateRejects(t *testing.T) {
	c := MustClock
	tests := []struct {
		name string
		cal  Calendar
	}{
		{"no days", Calendar{Periods: []Period{{Ordinal: 1, Start: c("08:00"), End: c("09:00")}}}},
		{"bad day", Calendar{Days: []Day{"Funday"}, Periods: []Period{{Ordinal: 1, Start: c("08:00"), End: c("09:00")}}}},
		{"no periods", Calendar{Days: Weekdays}},
		{"inverted", Calendar{Days: Weekdays, Periods: []Period{{Ordinal: 1, Start: c("09:00"), End: c("08:00")}}}},
		{"overlap", Calendar{Days: Weekdays, Periods: []Period{
			{Ordinal: 1, Start: c("08:00"), End: c("09:00")},
			{Ordinal: 2, Start: c("08:30"), End: c("09:30")},
		}}},
		{"ordinals", Calendar{Days: Weekdays, Periods: []Period{
			{Ordinal: 2, Start: c("08:00"), End: c("09:00")},
			{Ordinal: 1, Start: c("09:00"), End: c("09:30")},
		}}},
	}
	for _, tt := range tests {
		if err := tt.cal.Validate(); err == nil {
			t.Errorf("%s: Validate succeeded, want error", tt.name)
		}
	}
}

func TestInstructorProfile(t *testing.T) {
	pt := InstructorProfile{ID: "lee", Employment: PartTime, AvailableDays: []Day{Monday, Wednesday}, Specializations: []string{"Art"}}
	if !pt.AvailableOn(Monday) || pt.AvailableOn(Tuesday) {
		t.Error("part-time availability wrong")
	}
	if pt.WeeklyLimit() != DefaultPartTimeLoad {
		t.Errorf("part-time limit = %d", pt.WeeklyLimit())
	}
	ft := InstructorProfile{ID: "wilson", Employment: FullTime, MaxWeeklyPeriods: 20}
	if !ft.AvailableOn(Saturday) {
		t.Error("full-time should be available every day")
	}
	if ft.WeeklyLimit() != 20 {
		t.Errorf("limit = %d, want 20", ft.WeeklyLimit())
	}
	if !pt.Teaches("Art") || pt.Teaches("Math") {
		t.Error("Teaches wrong")
	}
	if ft.DisplayName() != "wilson" {
		t.Errorf("DisplayName = %q", ft.DisplayName())
	}
}
