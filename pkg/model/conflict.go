package model

// ConflictTier identifies which detector tier produced a result.
type ConflictTier string

const (
	TierSession       ConflictTier = "session"
	TierAuthoritative ConflictTier = "authoritative"
)

// ConflictQuery asks whether an instructor is committed elsewhere during an interval.
type ConflictQuery struct {
	InstructorID      string `json:"instructor_id"`
	Day               Day    `json:"day"`
	Start             Clock  `json:"start"`
	End               Clock  `json:"end"`
	ExcludeClassGroup string `json:"exclude_class_group,omitempty"`
}

// ConflictResult is the answer to a ConflictQuery. During draft editing it is an
// advisory, never an error.
type ConflictResult struct {
	Conflicting           bool         `json:"conflicting"`
	ConflictingClassGroup string       `json:"conflicting_class_group,omitempty"`
	Message               string       `json:"message,omitempty"`
	Tier                  ConflictTier `json:"tier,omitempty"`
}

// SlotConflict names one slot of a grid that collides with another class group.
type SlotConflict struct {
	Slot                  SlotKey `json:"slot"`
	InstructorID          string  `json:"instructor_id"`
	ConflictingClassGroup string  `json:"conflicting_class_group"`
	Message               string  `json:"message"`
}
