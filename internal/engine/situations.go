package engine

import (
	"github.com/lessonloop/lessonloop/pkg/domain"
)

// advanceSituations handles the roleplay module. Two regimes: resolving a
// continue-gate (the learner pressed "Далее" after finishing a scenario), and
// normal answer evaluation within a scenario.
func advanceSituations(s *domain.Script, cur domain.Step, out domain.Outcome) domain.Batch {
	if !s.HasSituations() {
		return completionBatch(s)
	}
	if cur.AwaitingContinue {
		return resolveContinue(s, cur)
	}

	scenarios := s.Situations.Scenarios
	idx := firstPlayableScenario(s, domain.ClampIndex(cur.Index, len(scenarios)))
	if idx < 0 {
		return finishSituations(s)
	}
	sc := scenarios[idx]
	sub := domain.ClampIndex(cur.SubIndex, len(sc.Steps))

	if !out.IsCorrect {
		retry := cur
		return domain.Batch{
			Messages: []domain.Message{modelMessage(situationRetryText(out.Feedback), &retry)},
			Next:     &retry,
		}
	}

	// More steps within the same scenario: advance directly, no gate.
	if sub+1 < len(sc.Steps) {
		if sc.Steps[sub+1].Completion {
			return finishSituations(s)
		}
		step := &domain.Step{Module: domain.ModuleSituations, Index: idx, SubIndex: sub + 1}
		return domain.Batch{
			Messages: []domain.Message{modelMessage(situationPromptText(s, idx, sub+1, true), step)},
			Next:     step,
		}
	}

	// Scenario exhausted: gate behind an explicit continue so the learner can
	// read the final exchange before the lesson moves on.
	feedback := out.ReactionText
	if feedback == "" {
		feedback = out.Feedback
	}

	gate := &domain.Step{
		Module:           domain.ModuleSituations,
		Index:            idx,
		SubIndex:         sub,
		AwaitingContinue: true,
		NextIndex:        idx + 1,
		NextSubIndex:     0,
	}
	if idx+1 < len(scenarios) {
		gate.NextModule = domain.ModuleSituations
	} else {
		gate.NextModule = domain.ModuleCompletion
	}

	return domain.Batch{
		Messages: []domain.Message{modelMessage(situationGateText(feedback), gate)},
		Next:     gate,
	}
}

// resolveContinue applies the destination precomputed when the gate was
// emitted. Destinations that fell out of range (stale snapshots, trimmed
// content) resolve to completion.
func resolveContinue(s *domain.Script, cur domain.Step) domain.Batch {
	scenarios := s.Situations.Scenarios

	if cur.NextModule != domain.ModuleSituations || cur.NextIndex >= len(scenarios) {
		return finishSituations(s)
	}

	idx := firstPlayableScenario(s, domain.ClampIndex(cur.NextIndex, len(scenarios)))
	if idx < 0 {
		return finishSituations(s)
	}
	sc := scenarios[idx]
	sub := domain.ClampIndex(cur.NextSubIndex, len(sc.Steps))

	if sc.Steps[sub].Completion {
		return finishSituations(s)
	}

	step := &domain.Step{Module: domain.ModuleSituations, Index: idx, SubIndex: sub}
	return domain.Batch{
		Messages: []domain.Message{modelMessage(situationPromptText(s, idx, sub, true), step)},
		Next:     step,
	}
}

// finishSituations closes the module: its success text (when authored), then
// a module separator and the terminal completion message, mirroring every
// other module exit.
func finishSituations(s *domain.Script) domain.Batch {
	b := completionBatch(s)
	sep := modelMessage(separator(domain.TitleCompletion, ""), snapshotOf(b))
	b.Messages = append([]domain.Message{sep}, b.Messages...)
	if s.Situations != nil && s.Situations.SuccessText != "" {
		b = withSuccess(s.Situations.SuccessText, b)
	}
	return b
}
