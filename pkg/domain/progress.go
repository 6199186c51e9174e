package domain

import "time"

// Progress is the persisted per-(user, lesson) snapshot, written after every
// engine advancement and read once at session start to seed the cursor when
// message history is ambiguous. Last write wins.
type Progress struct {
	Step        *Step      `json:"currentStepSnapshot"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Completed reports whether the lesson has been finished.
func (p *Progress) Completed() bool {
	return p != nil && p.CompletedAt != nil
}
