package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Day is a weekday on which teaching periods run.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
	Sunday    Day = "Sunday"
)

// AllDays lists every weekday in calendar order.
var AllDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Weekdays is the default five-day teaching week.
var Weekdays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// String returns the string representation of the day.
func (d Day) String() string {
	return string(d)
}

// Index returns the position of the day in the week (Monday = 0), or -1 if unknown.
func (d Day) Index() int {
	for i, day := range AllDays {
		if day == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is one of the seven weekdays.
func (d Day) Valid() bool {
	return d.Index() >= 0
}

// ParseDay accepts full day names or three-letter abbreviations, case-insensitively.
func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, day := range AllDays {
		name := strings.ToLower(string(day))
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return day, nil
		}
	}
	return "", fmt.Errorf("unknown day %q", s)
}

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM" (24-hour).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid clock %q: bad hour", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid clock %q: bad minute", s)
	}
	return Clock(hh*60 + mm), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share a non-zero duration.
func Overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// Period is one named interval of the school day.
type Period struct {
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Name    string `json:"name" yaml:"name"`
	Start   Clock  `json:"start" yaml:"start"`
	End     Clock  `json:"end" yaml:"end"`
	Break   bool   `json:"break,omitempty" yaml:"break,omitempty"`
}

// Calendar is the ordered set of periods shared by every class group and day.
// Treat it as read-only once loaded.
type Calendar struct {
	Days    []Day    `json:"days" yaml:"days"`
	Periods []Period `json:"periods" yaml:"periods"`
}

// DefaultCalendar returns a Monday–Friday calendar with eight 45-minute teaching
// periods, a morning break after period 3 and lunch after period 6.
func DefaultCalendar() Calendar {
	var periods []Period
	start := MustClock("08:00")
	ordinal := 1
	teaching := 0
	add := func(name string, minutes int, brk bool) {
		periods = append(periods, Period{
			Ordinal: ordinal,
			Name:    name,
			Start:   start,
			End:     start + Clock(minutes),
			Break:   brk,
		})
		start += Clock(minutes)
		ordinal++
	}
	for teaching < 8 {
		teaching++
		add(fmt.Sprintf("Period %d", teaching), 45, false)
		switch teaching {
		case 3:
			add("Morning Break", 15, true)
		case 6:
			add("Lunch", 45, true)
		}
	}
	return Calendar{Days: append([]Day(nil), Weekdays...), Periods: periods}
}

// Validate checks ordinals, interval sanity and day names.
func (c Calendar) Validate() error {
	if len(c.Days) == 0 {
		return fmt.Errorf("calendar has no days")
	}
	seenDays := make(map[Day]bool, len(c.Days))
	for _, d := range c.Days {
		if !d.Valid() {
			return fmt.Errorf("calendar day %q is not a weekday", d)
		}
		if seenDays[d] {
			return fmt.Errorf("calendar day %s listed twice", d)
		}
		seenDays[d] = true
	}
	if len(c.Periods) == 0 {
		return fmt.Errorf("calendar has no periods")
	}
	for i, p := range c.Periods {
		if p.Start >= p.End {
			return fmt.Errorf("period %d (%s): start %s is not before end %s", p.Ordinal, p.Name, p.Start, p.End)
		}
		if i == 0 {
			continue
		}
		prev := c.Periods[i-1]
		if p.Ordinal <= prev.Ordinal {
			return fmt.Errorf("period ordinals must ascend: %d after %d", p.Ordinal, prev.Ordinal)
		}
		if p.Start < prev.End {
			return fmt.Errorf("period %d (%s) overlaps period %d (%s)", p.Ordinal, p.Name, prev.Ordinal, prev.Name)
		}
	}
	return nil
}

// Period returns the period with the given ordinal.
func (c Calendar) Period(ordinal int) (Period, bool) {
	for _, p := range c.Periods {
		if p.Ordinal == ordinal {
			return p, true
		}
	}
	return Period{}, false
}

// HasDay reports whether d is an active day of this calendar.
func (c Calendar) HasDay(d Day) bool {
	for _, day := range c.Days {
		if day == d {
			return true
		}
	}
	return false
}

// TeachingPeriods returns the non-break periods in order.
func (c Calendar) TeachingPeriods() []Period {
	var out []Period
	for _, p := range c.Periods {
		if !p.Break {
			out = append(out, p)
		}
	}
	return out
}
