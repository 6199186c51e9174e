package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

func situationPayload(t *testing.T, msg domain.Message) *domain.SituationPayload {
	t.Helper()
	p, ok := domain.DecodePayload(msg.Text)
	require.True(t, ok, "not a payload message: %q", msg.Text)
	sit, ok := p.(*domain.SituationPayload)
	require.True(t, ok, "not a situation payload: %q", msg.Text)
	return sit
}

func TestSituations_RetryInPlace(t *testing.T) {
	s := testScript()
	cur := domain.Step{Module: domain.ModuleSituations, Index: 0, SubIndex: 1}

	b := Advance(s, cur, domain.Outcome{Feedback: "Слово cuenta женского рода."})

	require.Len(t, b.Messages, 1)
	require.Equal(t, &cur, b.Next)

	sit := situationPayload(t, b.Messages[0])
	require.Equal(t, "incorrect", sit.Result)
	require.Equal(t, "Слово cuenta женского рода.", sit.Feedback)
	require.Equal(t, domain.MarkerTextInput, sit.Marker)
}

func TestSituations_AdvanceWithinScenario(t *testing.T) {
	s := testScript()
	b := Advance(s, domain.Step{Module: domain.ModuleSituations, Index: 0, SubIndex: 0}, correct())

	require.Len(t, b.Messages, 1)
	require.Equal(t, &domain.Step{Module: domain.ModuleSituations, Index: 0, SubIndex: 1}, b.Next)

	sit := situationPayload(t, b.Messages[0])
	require.Equal(t, "¿Algo más?", sit.AI)
	require.True(t, sit.PrevUserCorrect)
	// Framing is only shown on a scenario's first step.
	require.Empty(t, sit.Title)
	require.Empty(t, sit.Situation)
}

func TestSituations_GateAfterLastStep(t *testing.T) {
	s := testScript()
	out := domain.Outcome{IsCorrect: true, ReactionText: "¡Perfecto!"}

	b := Advance(s, domain.Step{Module: domain.ModuleSituations, Index: 0, SubIndex: 1}, out)

	require.Len(t, b.Messages, 1)
	require.Equal(t, &domain.Step{
		Module:           domain.ModuleSituations,
		Index:            0,
		SubIndex:         1,
		AwaitingContinue: true,
		NextModule:       domain.ModuleSituations,
		NextIndex:        1,
		NextSubIndex:     0,
	}, b.Next)

	sit := situationPayload(t, b.Messages[0])
	require.True(t, sit.AwaitingContinue)
	require.Equal(t, domain.ContinueLabel, sit.ContinueLabel)
	require.Equal(t, "correct", sit.Result)
	require.Equal(t, "¡Perfecto!", sit.Feedback)
}

func TestSituations_GateOnFinalScenarioPointsAtCompletion(t *testing.T) {
	s := testScript()
	b := Advance(s, domain.Step{Module: domain.ModuleSituations, Index: 1, SubIndex: 0}, correct())

	require.Equal(t, domain.ModuleCompletion, b.Next.NextModule)
	require.True(t, b.Next.AwaitingContinue)
}

func TestSituations_ContinueIntoNextScenario(t *testing.T) {
	s := testScript()
	gate := domain.Step{
		Module:           domain.ModuleSituations,
		Index:            0,
		SubIndex:         1,
		AwaitingContinue: true,
		NextModule:       domain.ModuleSituations,
		NextIndex:        1,
	}

	b := Advance(s, gate, correct())

	require.Len(t, b.Messages, 1)
	require.Equal(t, &domain.Step{Module: domain.ModuleSituations, Index: 1, SubIndex: 0}, b.Next)

	sit := situationPayload(t, b.Messages[0])
	require.Equal(t, "Прощание", sit.Title)
	require.Equal(t, "¡Hasta luego!", sit.AI)
	require.True(t, sit.PrevUserCorrect)
}

func TestSituations_ContinueIntoCompletion(t *testing.T) {
	s := testScript()
	gate := domain.Step{
		Module:           domain.ModuleSituations,
		Index:            1,
		SubIndex:         0,
		AwaitingContinue: true,
		NextModule:       domain.ModuleCompletion,
		NextIndex:        2,
	}

	b := Advance(s, gate, correct())

	require.Nil(t, b.Next)
	require.Len(t, b.Messages, 3)
	require.Equal(t, "Диалоги пройдены!", b.Messages[0].Text)

	// A module separator frames the completion, like every other module exit.
	require.Equal(t, domain.KindSection, domain.PayloadKindOf(b.Messages[1].Text))
	require.Equal(t, domain.TitleCompletion, sectionTitle(t, b.Messages[1]))

	require.Contains(t, b.Messages[2].Text, "Урок окончен!")
	require.True(t, domain.IsCompletionText(b.Messages[2].Text))
	require.Equal(t, &domain.Step{Module: domain.ModuleCompletion}, b.Messages[2].Step)
}

func TestSituations_ContinueWithStaleIndexFinishes(t *testing.T) {
	s := testScript()
	gate := domain.Step{
		Module:           domain.ModuleSituations,
		AwaitingContinue: true,
		NextModule:       domain.ModuleSituations,
		NextIndex:        99,
	}

	b := Advance(s, gate, correct())
	require.Nil(t, b.Next)
	require.True(t, domain.IsCompletionText(b.Messages[len(b.Messages)-1].Text))
}

func TestSituations_CompletionTriggerStepFinishes(t *testing.T) {
	s := testScript()
	s.Situations.Scenarios[0].Steps = append(s.Situations.Scenarios[0].Steps,
		domain.ScenarioStep{Completion: true})

	// Answering the last real step correctly runs straight into the trigger
	// step and ends the lesson, no gate.
	b := Advance(s, domain.Step{Module: domain.ModuleSituations, Index: 0, SubIndex: 1}, correct())

	require.Nil(t, b.Next)
	require.True(t, domain.IsCompletionText(b.Messages[len(b.Messages)-1].Text))
}

func TestSituations_EmptyScenariosSkipped(t *testing.T) {
	s := testScript()
	s.Situations.Scenarios = append([]domain.Scenario{{Title: "пустой"}}, s.Situations.Scenarios...)

	// Entering the module lands on the first scenario that has steps.
	b := Advance(s, domain.Step{Module: domain.ModuleFindTheMistake, Index: 1}, domain.Outcome{Choice: "A"})
	require.Equal(t, &domain.Step{Module: domain.ModuleSituations, Index: 1, SubIndex: 0}, b.Next)

	sit := situationPayload(t, b.Messages[2])
	require.Equal(t, "В кафе", sit.Title)
}

func TestSituations_NoScenariosCompletes(t *testing.T) {
	s := testScript()
	s.Situations.Scenarios = nil

	b := Advance(s, domain.Step{Module: domain.ModuleSituations}, correct())
	require.Nil(t, b.Next)
	require.True(t, domain.IsCompletionText(b.Messages[len(b.Messages)-1].Text))
}

func TestSituations_RetryFallsBackToDefaultPrompt(t *testing.T) {
	s := testScript()
	b := Advance(s, domain.Step{Module: domain.ModuleSituations}, domain.Outcome{})

	sit := situationPayload(t, b.Messages[0])
	require.Equal(t, domain.DefaultRetryPrompt, sit.Feedback)
}
