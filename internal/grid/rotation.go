package grid

import (
	"sort"
	"sync"

	"github.com/me/timetable/pkg/model"
)

// RotationPool hands out instructors for a subject in round-robin order. Only
// instructors available on the slot's day are considered.
type RotationPool struct {
	mu       sync.Mutex
	bySubj   map[string][]model.InstructorProfile
	position map[string]int
}

// NewRotationPool indexes instructors by specialization. Each subject's rotation
// follows instructor ID order so that results are reproducible.
func NewRotationPool(instructors []model.InstructorProfile) *RotationPool {
	p := &RotationPool{
		bySubj:   map[string][]model.InstructorProfile{},
		position: map[string]int{},
	}
	for _, in := range instructors {
		for _, subj := range in.Specializations {
			p.bySubj[subj] = append(p.bySubj[subj], in)
		}
	}
	for subj := range p.bySubj {
		list := p.bySubj[subj]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return p
}

// Resolve implements Resolver.
func (p *RotationPool) Resolve(subject string, slot model.SlotKey) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.bySubj[subject]
	for i := 0; i < len(list); i++ {
		idx := (p.position[subject] + i) % len(list)
		if list[idx].AvailableOn(slot.Day) {
			p.position[subject] = idx + 1
			return list[idx].ID, true
		}
	}
	return "", false
}
