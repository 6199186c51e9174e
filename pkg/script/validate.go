package script

import (
	"fmt"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// ValidationError represents a single script validation failure.
type ValidationError struct {
	Field  string // JSON-ish path of the offending field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("script field %q: %s", e.Field, e.Reason)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d script validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors returns all validation errors if err is an AggregateError.
func ValidationErrors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}

// Validate checks a normalized script for content the engine cannot progress
// through. Optional modules may be absent, but present modules must be whole.
func Validate(s *domain.Script) error {
	var errs []error

	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	if s.Goal == "" {
		fail("goal", "required")
	}
	if s.Completion == "" {
		fail("completion", "required")
	}
	if len(s.Words.Items) == 0 {
		fail("words.items", "required")
	}
	for i, item := range s.Words.Items {
		if item.Word == "" {
			fail(fmt.Sprintf("words.items[%d].word", i), "required")
		}
	}

	if s.Grammar.Explanation == "" {
		fail("grammar.explanation", "required")
	}
	hasExercise := len(s.Grammar.Drills) > 0 ||
		(s.Grammar.AudioExercise != nil && s.Grammar.AudioExercise.Expected != "") ||
		(s.Grammar.TextExercise != nil && s.Grammar.TextExercise.Expected != "")
	if !hasExercise {
		fail("grammar", "needs drills or an audio/text exercise")
	}

	if s.Constructor != nil {
		if len(s.Constructor.Tasks) == 0 {
			fail("constructor.tasks", "present but empty")
		}
		for i, task := range s.Constructor.Tasks {
			if len(task.Correct) == 0 {
				fail(fmt.Sprintf("constructor.tasks[%d].correct", i), "required")
			}
			if len(task.Words) == 0 {
				fail(fmt.Sprintf("constructor.tasks[%d].words", i), "required")
			}
		}
	}

	if s.FindTheMistake != nil {
		if len(s.FindTheMistake.Tasks) == 0 {
			fail("find_the_mistake.tasks", "present but empty")
		}
		for i, task := range s.FindTheMistake.Tasks {
			if len(task.Options) != 2 {
				fail(fmt.Sprintf("find_the_mistake.tasks[%d].options", i), "exactly two options expected")
			}
			if task.Answer != "A" && task.Answer != "B" {
				fail(fmt.Sprintf("find_the_mistake.tasks[%d].answer", i), `must be "A" or "B"`)
			}
		}
	}

	if s.Situations != nil {
		if len(s.Situations.Scenarios) == 0 {
			fail("situations.scenarios", "present but empty")
		}
		for i, sc := range s.Situations.Scenarios {
			if len(sc.Steps) == 0 {
				// An empty scenario would stall the lesson mid-module;
				// reject it here instead.
				fail(fmt.Sprintf("situations.scenarios[%d].steps", i), "no steps after normalization")
				continue
			}
			for j, st := range sc.Steps {
				if st.Completion {
					continue
				}
				if st.ExpectedAnswer == "" {
					fail(fmt.Sprintf("situations.scenarios[%d].steps[%d].expected_answer", i, j), "required")
				}
			}
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
