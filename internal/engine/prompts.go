package engine

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// modelMessage builds a model message with the given cursor snapshot.
func modelMessage(text string, step *domain.Step) domain.Message {
	return domain.Message{Role: domain.RoleModel, Text: text, Step: step}
}

// separator builds the titled section message that opens a module. Content is
// the module's instruction when the script provides one.
func separator(title, content string) string {
	return domain.EncodePayload(domain.SectionPayload{
		Kind:    domain.KindSection,
		Title:   title,
		Content: content,
	})
}

// goalText renders the lesson goal payload.
func goalText(s *domain.Script) string {
	return domain.EncodePayload(domain.GoalPayload{Kind: domain.KindGoal, Text: s.Goal})
}

// wordsListText renders the full vocabulary module. The audio queue flattens
// each item into its word followed by its example sentence.
func wordsListText(s *domain.Script) string {
	queue := lo.FlatMap(s.Words.Items, func(item domain.WordItem, _ int) []string {
		out := []string{item.Word}
		if item.Context != "" {
			out = append(out, item.Context)
		}
		return out
	})
	return domain.EncodePayload(domain.WordsListPayload{
		Kind:        domain.KindWordsList,
		Instruction: s.Words.Instruction,
		Items:       s.Words.Items,
		AudioQueue:  queue,
	})
}

// grammarBundleText renders the drills bundle for in-place checking.
func grammarBundleText(s *domain.Script) string {
	return domain.EncodePayload(domain.GrammarPayload{
		Kind:        domain.KindGrammar,
		Explanation: s.Grammar.Explanation,
		Drills:      s.Grammar.Drills,
	})
}

// grammarExerciseText renders the legacy single exercise. Audio wins over
// text when both are present.
func grammarExerciseText(s *domain.Script) string {
	if ex := s.Grammar.AudioExercise; ex != nil && ex.Expected != "" {
		return domain.EncodePayload(domain.AudioExercisePayload{
			Kind:     domain.KindAudioExercise,
			Content:  s.Grammar.Explanation,
			Expected: ex.Expected,
			Marker:   domain.MarkerAudioInput,
		})
	}
	var expected, instruction string
	if ex := s.Grammar.TextExercise; ex != nil {
		expected = ex.Expected
		instruction = ex.Instruction
	}
	return domain.EncodePayload(domain.TextExercisePayload{
		Kind:        domain.KindTextExercise,
		Content:     s.Grammar.Explanation,
		Expected:    expected,
		Instruction: instruction,
		Marker:      domain.MarkerTextInput,
	})
}

// grammarInputMarker is the sentinel re-included in a grammar retry message.
func grammarInputMarker(s *domain.Script) string {
	if ex := s.Grammar.AudioExercise; ex != nil && ex.Expected != "" {
		return domain.MarkerAudioInput
	}
	return domain.MarkerTextInput
}

// constructorPromptText renders one sentence-construction task.
func constructorPromptText(s *domain.Script, index int) string {
	task := s.Constructor.Tasks[index]

	instruction := task.Instruction
	if instruction == "" {
		instruction = s.Constructor.Instruction
	}

	content := fmt.Sprintf("Слова: %s", strings.Join(task.Words, ", "))
	if task.Note != "" {
		content += "\n" + task.Note
	}

	return domain.EncodePayload(domain.TextExercisePayload{
		Kind:        domain.KindTextExercise,
		Content:     content,
		Expected:    task.Correct[0],
		Instruction: instruction,
		Marker:      domain.MarkerTextInput,
	})
}

// constructorRetryText embeds oracle feedback plus the canonical answer and
// the original word bank for another attempt in place.
func constructorRetryText(s *domain.Script, index int, feedback string) string {
	task := s.Constructor.Tasks[index]
	if feedback == "" {
		feedback = domain.DefaultRetryPrompt
	}
	return fmt.Sprintf("%s\nПравильный ответ: %s\nСлова: %s\n%s",
		feedback, task.Correct[0], strings.Join(task.Words, ", "), domain.MarkerTextInput)
}

// mistakePromptText renders one find-the-mistake task.
func mistakePromptText(s *domain.Script, index int) string {
	task := s.FindTheMistake.Tasks[index]
	return domain.EncodePayload(domain.MistakePayload{
		Kind:        domain.KindMistake,
		Options:     task.Options,
		Answer:      task.Answer,
		Explanation: task.Explanation,
		TaskIndex:   index,
		Total:       len(s.FindTheMistake.Tasks),
	})
}

// situationPromptText renders one roleplay exchange. Title and situation
// context are included only on a scenario's opening step.
func situationPromptText(s *domain.Script, index, subIndex int, prevCorrect bool) string {
	sc := s.Situations.Scenarios[index]
	st := sc.Steps[subIndex]

	p := domain.SituationPayload{
		Kind:            domain.KindSituation,
		AI:              st.AI,
		AITranslation:   st.AITranslation,
		Task:            st.Task,
		PrevUserCorrect: prevCorrect,
		Marker:          domain.MarkerTextInput,
	}
	if subIndex == 0 {
		p.Title = sc.Title
		p.Situation = sc.Situation
	}
	return domain.EncodePayload(p)
}

// situationRetryText renders in-place feedback for an incorrect reply.
func situationRetryText(feedback string) string {
	if feedback == "" {
		feedback = domain.DefaultRetryPrompt
	}
	return domain.EncodePayload(domain.SituationPayload{
		Kind:     domain.KindSituation,
		Result:   "incorrect",
		Feedback: feedback,
		Marker:   domain.MarkerTextInput,
	})
}

// situationGateText renders the continue-gated end-of-scenario message.
func situationGateText(feedback string) string {
	return domain.EncodePayload(domain.SituationPayload{
		Kind:             domain.KindSituation,
		Result:           "correct",
		Feedback:         feedback,
		AwaitingContinue: true,
		ContinueLabel:    domain.ContinueLabel,
	})
}

// completionText is the terminal message: the authored completion prose with
// the completion sentinel appended.
func completionText(s *domain.Script) string {
	return s.Completion + "\n" + domain.MarkerLessonComplete
}
