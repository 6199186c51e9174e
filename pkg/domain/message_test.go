package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadKindOf(t *testing.T) {
	tests := []struct {
		name string
		text string
		want PayloadKind
	}{
		{"goal payload", EncodePayload(GoalPayload{Kind: KindGoal, Text: "g"}), KindGoal},
		{"situation payload", EncodePayload(SituationPayload{Kind: KindSituation, AI: "hola"}), KindSituation},
		{"plain text", "Попробуй ещё раз.\n<text_input>", ""},
		{"completion sentinel", "Готово!\n<lesson_complete>", ""},
		{"empty", "", ""},
		{"json without discriminator", `{"text": "x"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PayloadKindOf(tt.text))
		})
	}
}

func TestDecodePayload_RoundTrip(t *testing.T) {
	text := EncodePayload(SituationPayload{
		Kind:             KindSituation,
		Title:            "В кафе",
		AI:               "¡Hola!",
		AwaitingContinue: true,
		ContinueLabel:    ContinueLabel,
	})

	p, ok := DecodePayload(text)
	require.True(t, ok)

	sit, ok := p.(*SituationPayload)
	require.True(t, ok)
	require.Equal(t, "В кафе", sit.Title)
	require.Equal(t, "¡Hola!", sit.AI)
	require.True(t, sit.AwaitingContinue)
	require.Equal(t, "Далее", sit.ContinueLabel)
}

func TestDecodePayload_PlainText(t *testing.T) {
	_, ok := DecodePayload("просто текст")
	require.False(t, ok)

	_, ok = DecodePayload(`{"type": "nonsense"}`)
	require.False(t, ok)
}

func TestDecodePayload_MistakeIndexing(t *testing.T) {
	text := EncodePayload(MistakePayload{
		Kind:      KindMistake,
		Options:   []string{"a", "b"},
		Answer:    "B",
		TaskIndex: 1,
		Total:     3,
	})

	p, ok := DecodePayload(text)
	require.True(t, ok)

	m := p.(*MistakePayload)
	require.Equal(t, 1, m.TaskIndex)
	require.Equal(t, 3, m.Total)
	require.Equal(t, "B", m.Answer)
}

func TestIsCompletionText(t *testing.T) {
	require.True(t, IsCompletionText("Урок окончен!\n"+MarkerLessonComplete))
	require.False(t, IsCompletionText("Урок окончен!"))
	require.False(t, IsCompletionText(MarkerTextInput))
}
