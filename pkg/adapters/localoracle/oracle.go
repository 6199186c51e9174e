// Package localoracle grades answers against the script's expected values,
// for offline use (the CLI runner) and tests. It is deliberately strict:
// exact match after whitespace and case folding, no linguistic tolerance.
package localoracle

import (
	"context"
	"strings"

	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

// Oracle implements ports.Oracle from the lesson script itself.
type Oracle struct {
	script *domain.Script
}

// New creates an oracle for one script.
func New(script *domain.Script) *Oracle {
	return &Oracle{script: script}
}

// Check compares the answer with the script's expected value at the step.
func (o *Oracle) Check(ctx context.Context, req ports.CheckRequest) (ports.CheckResult, error) {
	answer := fold(req.Answer)

	expectedAnswers := o.expectedAt(req.Step)
	if len(expectedAnswers) == 0 {
		// Nothing to grade at this step (e.g. drills checked in the UI).
		return ports.CheckResult{IsCorrect: true}, nil
	}

	for _, expected := range expectedAnswers {
		if fold(expected) == answer {
			return ports.CheckResult{IsCorrect: true, Feedback: "Верно!"}, nil
		}
	}
	return ports.CheckResult{
		IsCorrect: false,
		Feedback:  domain.DefaultRetryPrompt,
	}, nil
}

// expectedAt resolves the accepted answers for a step. An empty result means
// any answer passes (e.g. the drills bundle, which is checked in the UI).
func (o *Oracle) expectedAt(step domain.Step) []string {
	s := o.script
	switch step.Module {
	case domain.ModuleGrammar:
		if len(s.Grammar.Drills) > 0 {
			return nil
		}
		if ex := s.Grammar.AudioExercise; ex != nil && ex.Expected != "" {
			return []string{ex.Expected}
		}
		if ex := s.Grammar.TextExercise; ex != nil && ex.Expected != "" {
			return []string{ex.Expected}
		}

	case domain.ModuleConstructor:
		if s.HasConstructor() {
			i := domain.ClampIndex(step.Index, len(s.Constructor.Tasks))
			return s.Constructor.Tasks[i].Correct
		}

	case domain.ModuleSituations:
		if s.HasSituations() {
			i := domain.ClampIndex(step.Index, len(s.Situations.Scenarios))
			steps := s.Situations.Scenarios[i].Steps
			if len(steps) == 0 {
				return nil
			}
			j := domain.ClampIndex(step.SubIndex, len(steps))
			if steps[j].Completion {
				return nil
			}
			return []string{steps[j].ExpectedAnswer}
		}
	}
	return nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
