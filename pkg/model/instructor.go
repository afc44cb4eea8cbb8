package model

// EmploymentMode distinguishes instructors available all week from those
// restricted to specific days.
type EmploymentMode string

const (
	FullTime EmploymentMode = "full_time"
	PartTime EmploymentMode = "part_time"
)

// Default weekly period limits used when a profile does not set its own.
const (
	DefaultFullTimeLoad = 25
	DefaultPartTimeLoad = 12
)

// InstructorProfile is read-only reference data from the instructor directory.
type InstructorProfile struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Employment       EmploymentMode `json:"employment" yaml:"employment"`
	AvailableDays    []Day          `json:"available_days,omitempty" yaml:"available_days,omitempty"`
	Specializations  []string       `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	MaxWeeklyPeriods int            `json:"max_weekly_periods,omitempty" yaml:"max_weekly_periods,omitempty"`
}

// AvailableOn reports whether the instructor can teach on d. Full-time
// instructors are available every day.
func (p InstructorProfile) AvailableOn(d Day) bool {
	if p.Employment != PartTime {
		return true
	}
	for _, day := range p.AvailableDays {
		if day == d {
			return true
		}
	}
	return false
}

// Teaches reports whether subject is one of the instructor's specializations.
func (p InstructorProfile) Teaches(subject string) bool {
	for _, s := range p.Specializations {
		if s == subject {
			return true
		}
	}
	return false
}

// WeeklyLimit returns the soft weekly period cap.
func (p InstructorProfile) WeeklyLimit() int {
	if p.MaxWeeklyPeriods > 0 {
		return p.MaxWeeklyPeriods
	}
	if p.Employment == PartTime {
		return DefaultPartTimeLoad
	}
	return DefaultFullTimeLoad
}

// DisplayName returns the name, falling back to the ID.
func (p InstructorProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
