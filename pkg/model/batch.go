package model

// GridOutcomeState is the per-grid result of a batch operation.
type GridOutcomeState string

const (
	OutcomeSaved     GridOutcomeState = "saved"
	OutcomePublished GridOutcomeState = "published"
	OutcomeBlocked   GridOutcomeState = "blocked"
	OutcomeFailed    GridOutcomeState = "failed"
)

// GridOutcome reports what happened to one grid in a batch.
type GridOutcome struct {
	ClassGroup string           `json:"class_group"`
	State      GridOutcomeState `json:"state"`
	Status     GridStatus       `json:"status"`
	Conflicts  []SlotConflict   `json:"conflicts,omitempty"`
	Error      string           `json:"error,omitempty"`
	Err        error            `json:"-"`
}

// OK reports whether the grid was committed.
func (o GridOutcome) OK() bool {
	return o.State == OutcomeSaved || o.State == OutcomePublished
}

// BatchResult aggregates per-grid outcomes, ordered as submitted.
type BatchResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []GridOutcome `json:"outcomes"`
}

// Tally recomputes Succeeded and Failed from Outcomes.
func (r *BatchResult) Tally() {
	r.Succeeded, r.Failed = 0, 0
	for _, o := range r.Outcomes {
		if o.OK() {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

// Outcome returns the outcome for a class group.
func (r *BatchResult) Outcome(classGroup string) (GridOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.ClassGroup == classGroup {
			return o, true
		}
	}
	return GridOutcome{}, false
}
