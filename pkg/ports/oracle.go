package ports

import (
	"context"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// CheckRequest asks the oracle to grade a free-text answer at a given step.
// Only grammar, constructor and situations steps are ever submitted;
// find-the-mistake choices are matched locally.
type CheckRequest struct {
	Step   domain.Step `json:"currentStep"`
	Answer string      `json:"studentAnswer"`
	UILang string      `json:"uiLang,omitempty"`
}

// CheckResult is the oracle's verdict.
type CheckResult struct {
	IsCorrect    bool   `json:"isCorrect"`
	Feedback     string `json:"feedback"`
	ReactionText string `json:"reactionText,omitempty"`
}

// Oracle validates free-text learner answers. Implementations may call a
// remote grading service or match against the script locally. An error return
// is pre-normalized by the caller into an incorrect outcome with a generic
// retry prompt; it never reaches the engine.
type Oracle interface {
	Check(ctx context.Context, req CheckRequest) (CheckResult, error)
}
