package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry in the lesson chat stream. Text is either plain prose
// (possibly carrying input-mode sentinels) or a JSON-encoded payload with a
// "type" discriminator. Step snapshots the cursor position the session is in
// once this message is shown; it is what repair recomputes the cursor from.
//
// Messages are never mutated after creation except to attach the
// store-assigned ID once persistence confirms.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Step      *Step     `json:"currentStepSnapshot"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// PayloadKind discriminates structured message payloads.
type PayloadKind string

const (
	KindGoal          PayloadKind = "goal"
	KindWordsList     PayloadKind = "words_list"
	KindSection       PayloadKind = "section"
	KindGrammar       PayloadKind = "grammar"
	KindAudioExercise PayloadKind = "audio_exercise"
	KindTextExercise  PayloadKind = "text_exercise"
	KindMistake       PayloadKind = "find_the_mistake"
	KindSituation     PayloadKind = "situation"
)

// GoalPayload announces the lesson goal.
type GoalPayload struct {
	Kind PayloadKind `json:"type" mapstructure:"type"`
	Text string      `json:"text" mapstructure:"text"`
}

// WordsListPayload carries the whole vocabulary module plus a flattened
// audio-playback queue (word then example sentence, per item).
type WordsListPayload struct {
	Kind        PayloadKind `json:"type" mapstructure:"type"`
	Instruction string      `json:"instruction,omitempty" mapstructure:"instruction"`
	Items       []WordItem  `json:"items" mapstructure:"items"`
	AudioQueue  []string    `json:"audioQueue" mapstructure:"audioQueue"`
}

// SectionPayload is a titled content block. With empty content it doubles as
// a module separator.
type SectionPayload struct {
	Kind    PayloadKind `json:"type" mapstructure:"type"`
	Title   string      `json:"title" mapstructure:"title"`
	Content string      `json:"content,omitempty" mapstructure:"content"`
}

// GrammarPayload bundles the explanation with all drills for in-place
// rendering; the engine is not consulted again until the learner moves on.
type GrammarPayload struct {
	Kind        PayloadKind `json:"type" mapstructure:"type"`
	Explanation string      `json:"explanation" mapstructure:"explanation"`
	Drills      []Drill     `json:"drills" mapstructure:"drills"`
}

// AudioExercisePayload is the legacy spoken grammar exercise.
type AudioExercisePayload struct {
	Kind     PayloadKind `json:"type" mapstructure:"type"`
	Content  string      `json:"content" mapstructure:"content"`
	Expected string      `json:"expected" mapstructure:"expected"`
	Marker   string      `json:"input_marker" mapstructure:"input_marker"`
}

// TextExercisePayload is a typed free-text exercise (legacy grammar exercise
// and constructor task prompts).
type TextExercisePayload struct {
	Kind        PayloadKind `json:"type" mapstructure:"type"`
	Content     string      `json:"content" mapstructure:"content"`
	Expected    string      `json:"expected" mapstructure:"expected"`
	Instruction string      `json:"instruction,omitempty" mapstructure:"instruction"`
	Marker      string      `json:"input_marker" mapstructure:"input_marker"`
}

// MistakePayload is one find-the-mistake task. The learner's choice is
// matched locally against Answer; a wrong choice never reaches the engine
// as a message.
type MistakePayload struct {
	Kind        PayloadKind `json:"type" mapstructure:"type"`
	Options     []string    `json:"options" mapstructure:"options"`
	Answer      string      `json:"answer" mapstructure:"answer"`
	Explanation string      `json:"explanation" mapstructure:"explanation"`
	TaskIndex   int         `json:"taskIndex" mapstructure:"taskIndex"`
	Total       int         `json:"total" mapstructure:"total"`
}

// SituationPayload is one roleplay exchange, including in-place feedback and
// the continue-gate fields.
type SituationPayload struct {
	Kind             PayloadKind `json:"type" mapstructure:"type"`
	Title            string      `json:"title,omitempty" mapstructure:"title"`
	Situation        string      `json:"situation,omitempty" mapstructure:"situation"`
	AI               string      `json:"ai,omitempty" mapstructure:"ai"`
	AITranslation    string      `json:"ai_translation,omitempty" mapstructure:"ai_translation"`
	Task             string      `json:"task,omitempty" mapstructure:"task"`
	Feedback         string      `json:"feedback,omitempty" mapstructure:"feedback"`
	Result           string      `json:"result,omitempty" mapstructure:"result"`
	PrevUserCorrect  bool        `json:"prevUserCorrect,omitempty" mapstructure:"prevUserCorrect"`
	AwaitingContinue bool        `json:"awaitingContinue,omitempty" mapstructure:"awaitingContinue"`
	ContinueLabel    string      `json:"continueLabel,omitempty" mapstructure:"continueLabel"`
	Marker           string      `json:"input_marker,omitempty" mapstructure:"input_marker"`
	IsCompletionStep bool        `json:"is_completion_step,omitempty" mapstructure:"is_completion_step"`
}

// EncodePayload serializes a payload struct into message text. The payload
// structs above cannot fail to marshal; a zero-value fallback keeps the
// engine's no-error contract regardless.
func EncodePayload(p any) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// PayloadKindOf sniffs the payload discriminator without a full decode.
// It returns "" for plain-text messages.
func PayloadKindOf(text string) PayloadKind {
	if !gjson.Valid(text) {
		return ""
	}
	return PayloadKind(gjson.Get(text, "type").String())
}

// DecodePayload parses message text into its typed payload. The second return
// is false for plain text or an unknown discriminator.
func DecodePayload(text string) (any, bool) {
	kind := PayloadKindOf(text)
	if kind == "" {
		return nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}

	decode := func(out any) (any, bool) {
		if err := mapstructure.Decode(raw, out); err != nil {
			return nil, false
		}
		return out, true
	}

	switch kind {
	case KindGoal:
		return decode(&GoalPayload{})
	case KindWordsList:
		return decode(&WordsListPayload{})
	case KindSection:
		return decode(&SectionPayload{})
	case KindGrammar:
		return decode(&GrammarPayload{})
	case KindAudioExercise:
		return decode(&AudioExercisePayload{})
	case KindTextExercise:
		return decode(&TextExercisePayload{})
	case KindMistake:
		return decode(&MistakePayload{})
	case KindSituation:
		return decode(&SituationPayload{})
	}
	return nil, false
}

// IsCompletionText reports whether message text carries the terminal
// completion sentinel.
func IsCompletionText(text string) bool {
	return strings.Contains(text, MarkerLessonComplete)
}
