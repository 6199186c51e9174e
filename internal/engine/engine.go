package engine

import (
	"github.com/lessonloop/lessonloop/pkg/domain"
)

// CreateInitial emits the lesson goal. The learner must explicitly
// acknowledge it before the engine is invoked again with a goal step.
func CreateInitial(s *domain.Script) domain.Batch {
	if s == nil {
		return domain.Batch{}
	}
	step := &domain.Step{Module: domain.ModuleGoal, Index: 0}
	return domain.Batch{
		Messages: []domain.Message{modelMessage(goalText(s), step)},
		Next:     step,
	}
}

// Advance computes the next message batch and cursor position for one learner
// action. It never returns an error: unexpected input yields an empty batch
// with a nil next step, and out-of-range cursor positions are clamped.
func Advance(s *domain.Script, cur domain.Step, out domain.Outcome) domain.Batch {
	if s == nil {
		return domain.Batch{}
	}

	switch cur.Module {
	case domain.ModuleGoal:
		return advanceGoal(s)
	case domain.ModuleWords:
		return advanceWords(s)
	case domain.ModuleGrammar:
		return advanceGrammar(s, cur, out)
	case domain.ModuleConstructor:
		return advanceConstructor(s, cur, out)
	case domain.ModuleFindTheMistake:
		return advanceMistake(s, cur, out)
	case domain.ModuleSituations:
		return advanceSituations(s, cur, out)
	case domain.ModuleCompletion:
		return completionBatch(s)
	}
	return domain.Batch{}
}

// advanceGoal moves unconditionally into the vocabulary module.
func advanceGoal(s *domain.Script) domain.Batch {
	step := &domain.Step{Module: domain.ModuleWords, Index: 0}
	return domain.Batch{
		Messages: []domain.Message{
			modelMessage(separator(domain.TitleWords, ""), step),
			modelMessage(wordsListText(s), step),
		},
		Next: step,
	}
}

// advanceWords moves unconditionally into grammar: either the drills bundle
// (current format) or the legacy explanation + single exercise pair.
func advanceWords(s *domain.Script) domain.Batch {
	success := s.Words.SuccessText
	if success == "" {
		success = domain.DefaultWordsSuccess
	}

	if len(s.Grammar.Drills) > 0 {
		step := &domain.Step{Module: domain.ModuleGrammar, Index: 0}
		return domain.Batch{
			Messages: []domain.Message{
				modelMessage(success, step),
				modelMessage(separator(domain.TitleGrammar, ""), step),
				modelMessage(grammarBundleText(s), step),
			},
			Next: step,
		}
	}

	// Legacy path: the explanation section is message index 0, the exercise
	// message index 1, so the cursor lands past the explanation.
	step := &domain.Step{Module: domain.ModuleGrammar, Index: 1}
	return domain.Batch{
		Messages: []domain.Message{
			modelMessage(success, step),
			modelMessage(separator(domain.TitleGrammar, ""), step),
			modelMessage(separator(domain.TitleGrammar, s.Grammar.Explanation), step),
			modelMessage(grammarExerciseText(s), step),
		},
		Next: step,
	}
}

// advanceGrammar retries in place on an incorrect outcome, otherwise exits
// into the next present module.
func advanceGrammar(s *domain.Script, cur domain.Step, out domain.Outcome) domain.Batch {
	if !out.IsCorrect {
		retry := cur
		feedback := out.Feedback
		if feedback == "" {
			feedback = domain.DefaultRetryPrompt
		}
		return domain.Batch{
			Messages: []domain.Message{
				modelMessage(feedback+"\n\n"+grammarInputMarker(s), &retry),
			},
			Next: &retry,
		}
	}

	success := s.Grammar.Transition
	if success == "" {
		success = s.Grammar.SuccessText
	}
	if success == "" {
		success = domain.DefaultGrammarSuccess
	}
	return withSuccess(success, exitModule(s, domain.ModuleGrammar))
}

// advanceConstructor walks the task list on correct answers and retries in
// place (re-showing the word bank and canonical answer) otherwise.
func advanceConstructor(s *domain.Script, cur domain.Step, out domain.Outcome) domain.Batch {
	if !s.HasConstructor() {
		return exitModule(s, domain.ModuleConstructor)
	}
	tasks := s.Constructor.Tasks
	i := domain.ClampIndex(cur.Index, len(tasks))

	if !out.IsCorrect {
		retry := cur
		return domain.Batch{
			Messages: []domain.Message{
				modelMessage(constructorRetryText(s, i, out.Feedback), &retry),
			},
			Next: &retry,
		}
	}

	if i+1 < len(tasks) {
		step := &domain.Step{Module: domain.ModuleConstructor, Index: i + 1}
		return domain.Batch{
			Messages: []domain.Message{modelMessage(constructorPromptText(s, i+1), step)},
			Next:     step,
		}
	}

	success := s.Constructor.SuccessText
	if success == "" {
		success = domain.DefaultModuleSuccess
	}
	return withSuccess(success, exitModule(s, domain.ModuleConstructor))
}

// advanceMistake matches the learner's choice locally. A missing or wrong
// choice produces no messages at all: the UI shows feedback inline without
// an engine round-trip.
func advanceMistake(s *domain.Script, cur domain.Step, out domain.Outcome) domain.Batch {
	if !s.HasFindTheMistake() {
		return exitModule(s, domain.ModuleFindTheMistake)
	}
	tasks := s.FindTheMistake.Tasks
	i := domain.ClampIndex(cur.Index, len(tasks))

	if out.Choice == "" || out.Choice != tasks[i].Answer {
		same := cur
		return domain.Batch{Next: &same}
	}

	if i+1 < len(tasks) {
		step := &domain.Step{Module: domain.ModuleFindTheMistake, Index: i + 1}
		return domain.Batch{
			Messages: []domain.Message{modelMessage(mistakePromptText(s, i+1), step)},
			Next:     step,
		}
	}

	success := s.FindTheMistake.SuccessText
	if success == "" {
		success = domain.DefaultModuleSuccess
	}
	return withSuccess(success, exitModule(s, domain.ModuleFindTheMistake))
}

// withSuccess prepends a transition success message to a module-entry batch,
// snapshotting it at the batch's destination step.
func withSuccess(text string, b domain.Batch) domain.Batch {
	b.Messages = append([]domain.Message{modelMessage(text, snapshotOf(b))}, b.Messages...)
	return b
}

// snapshotOf returns the cursor snapshot for messages of a batch: its next
// step, or the terminal completion step.
func snapshotOf(b domain.Batch) *domain.Step {
	if b.Next != nil {
		return b.Next
	}
	return &domain.Step{Module: domain.ModuleCompletion}
}

// exitModule builds the entry batch for the first present module after the
// given one: a module separator plus the module's first prompt, or the
// completion message when nothing follows.
func exitModule(s *domain.Script, from domain.Module) domain.Batch {
	switch domain.NextModule(s, from) {
	case domain.ModuleConstructor:
		step := &domain.Step{Module: domain.ModuleConstructor, Index: 0}
		return domain.Batch{
			Messages: []domain.Message{
				modelMessage(separator(domain.TitleConstructor, s.Constructor.Instruction), step),
				modelMessage(constructorPromptText(s, 0), step),
			},
			Next: step,
		}

	case domain.ModuleFindTheMistake:
		step := &domain.Step{Module: domain.ModuleFindTheMistake, Index: 0}
		return domain.Batch{
			Messages: []domain.Message{
				modelMessage(separator(domain.TitleFindTheMistake, s.FindTheMistake.Instruction), step),
				modelMessage(mistakePromptText(s, 0), step),
			},
			Next: step,
		}

	case domain.ModuleSituations:
		return enterSituations(s)
	}
	return completionBatch(s)
}

// enterSituations opens the first playable scenario, skipping scenarios that
// lost all steps in normalization (validation rejects those; this is the
// defensive path for hand-built scripts).
func enterSituations(s *domain.Script) domain.Batch {
	idx := firstPlayableScenario(s, 0)
	if idx < 0 {
		return completionBatch(s)
	}
	if s.Situations.Scenarios[idx].Steps[0].Completion {
		return completionBatch(s)
	}

	step := &domain.Step{Module: domain.ModuleSituations, Index: idx, SubIndex: 0}
	return domain.Batch{
		Messages: []domain.Message{
			modelMessage(separator(domain.TitleSituations, s.Situations.Instruction), step),
			modelMessage(situationPromptText(s, idx, 0, false), step),
		},
		Next: step,
	}
}

// firstPlayableScenario returns the first scenario index at or after from
// with a non-empty step list, or -1.
func firstPlayableScenario(s *domain.Script, from int) int {
	if !s.HasSituations() {
		return -1
	}
	for i := from; i < len(s.Situations.Scenarios); i++ {
		if len(s.Situations.Scenarios[i].Steps) > 0 {
			return i
		}
	}
	return -1
}

// completionBatch emits the terminal completion message. Next is nil: the
// lesson has no further state.
func completionBatch(s *domain.Script) domain.Batch {
	return domain.Batch{
		Messages: []domain.Message{
			modelMessage(completionText(s), &domain.Step{Module: domain.ModuleCompletion}),
		},
	}
}
