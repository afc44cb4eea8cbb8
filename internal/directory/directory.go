// Package directory serves read-only instructor profiles.
package directory

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/timetable/pkg/model"
)

// Directory looks up instructor profiles.
type Directory interface {
	Get(id string) (model.InstructorProfile, bool)
	List() []model.InstructorProfile
}

// Static is an in-memory Directory. It is immutable after construction.
type Static struct {
	byID  map[string]model.InstructorProfile
	order []string
}

// New validates profiles and indexes them by ID.
func New(profiles []model.InstructorProfile) (*Static, error) {
	d := &Static{byID: make(map[string]model.InstructorProfile, len(profiles))}
	for i, p := range profiles {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("instructor %d: id is required", i)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("instructor %s: duplicate id", p.ID)
		}
		switch p.Employment {
		case "":
			p.Employment = model.FullTime
		case model.FullTime, model.PartTime:
		default:
			return nil, fmt.Errorf("instructor %s: unknown employment %q", p.ID, p.Employment)
		}
		days := make([]model.Day, 0, len(p.AvailableDays))
		for _, raw := range p.AvailableDays {
			day, err := model.ParseDay(string(raw))
			if err != nil {
				return nil, fmt.Errorf("instructor %s: %w", p.ID, err)
			}
			days = append(days, day)
		}
		p.AvailableDays = days
		if p.Employment == model.PartTime && len(p.AvailableDays) == 0 {
			return nil, fmt.Errorf("instructor %s: part-time instructors need available_days", p.ID)
		}
		d.byID[p.ID] = p
		d.order = append(d.order, p.ID)
	}
	sort.Strings(d.order)
	return d, nil
}

type file struct {
	Instructors []model.InstructorProfile `yaml:"instructors"`
}

// Parse reads a YAML document with a top-level "instructors" list.
func Parse(data []byte) (*Static, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instructors: %w", err)
	}
	return New(f.Instructors)
}

// LoadFile reads an instructor directory from a YAML file.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Get returns the profile for id.
func (d *Static) Get(id string) (model.InstructorProfile, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// List returns all profiles ordered by ID.
func (d *Static) List() []model.InstructorProfile {
	out := make([]model.InstructorProfile, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Name returns a display name for id, or id itself when unknown. A nil
// directory is allowed.
func Name(d Directory, id string) string {
	if d == nil {
		return id
	}
	if p, ok := d.Get(id); ok {
		return p.DisplayName()
	}
	return id
}
