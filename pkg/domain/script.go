package domain

// Script is the authored content tree for one lesson. It is produced by an
// external content pipeline, loaded once per attempt and consumed read-only.
// Use the script package to decode and normalize raw JSON into this form.
type Script struct {
	Goal           string          `json:"goal"`
	Words          Words           `json:"words"`
	Grammar        Grammar         `json:"grammar"`
	Constructor    *Constructor    `json:"constructor,omitempty"`
	FindTheMistake *FindTheMistake `json:"find_the_mistake,omitempty"`
	Situations     *Situations     `json:"situations,omitempty"`
	Completion     string          `json:"completion"`
}

// Words is the vocabulary module.
type Words struct {
	Instruction string     `json:"instruction,omitempty"`
	SuccessText string     `json:"successText,omitempty"`
	Items       []WordItem `json:"items"`
}

type WordItem struct {
	Word               string   `json:"word"`
	Translation        string   `json:"translation"`
	Context            string   `json:"context"`
	ContextTranslation string   `json:"context_translation"`
	Highlights         []string `json:"highlights,omitempty"`
}

// Grammar carries the explanation plus either a drills bundle (current content
// format) or a single legacy exercise (audio or text).
type Grammar struct {
	Explanation   string         `json:"explanation"`
	Drills        []Drill        `json:"drills,omitempty"`
	AudioExercise *AudioExercise `json:"audio_exercise,omitempty"`
	TextExercise  *TextExercise  `json:"text_exercise,omitempty"`
	Transition    string         `json:"transition,omitempty"`
	SuccessText   string         `json:"successText,omitempty"`
}

// Drill is rendered and checked in place by the presentation layer; the engine
// ships the whole bundle in one message and never sees individual drill answers.
type Drill struct {
	Type        string   `json:"type,omitempty"`
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type AudioExercise struct {
	Expected string `json:"expected"`
}

type TextExercise struct {
	Expected    string `json:"expected"`
	Instruction string `json:"instruction,omitempty"`
}

// Constructor is the sentence-construction module.
type Constructor struct {
	Instruction string            `json:"instruction"`
	SuccessText string            `json:"successText,omitempty"`
	Tasks       []ConstructorTask `json:"tasks"`
}

// ConstructorTask holds a word bank and one or more accepted answers.
// Correct always has at least one entry after normalization; the first entry
// is the canonical answer shown on a wrong attempt.
type ConstructorTask struct {
	Words       []string `json:"words"`
	Correct     []string `json:"correct"`
	Note        string   `json:"note,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
}

// FindTheMistake is the error-spotting module. Answers are matched locally
// against Answer ("A" or "B"); the validation oracle is never consulted.
type FindTheMistake struct {
	Instruction string        `json:"instruction"`
	SuccessText string        `json:"successText,omitempty"`
	Tasks       []MistakeTask `json:"tasks"`
}

type MistakeTask struct {
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Situations is the open-ended roleplay module.
type Situations struct {
	Instruction string     `json:"instruction,omitempty"`
	SuccessText string     `json:"successText,omitempty"`
	Scenarios   []Scenario `json:"scenarios"`
}

// Scenario is one roleplay unit. After normalization Steps is never empty:
// legacy flat scenarios (ai/task/expected_answer directly on the scenario)
// become a one-element step list at load time.
type Scenario struct {
	Title     string         `json:"title"`
	Situation string         `json:"situation"`
	Steps     []ScenarioStep `json:"steps"`
}

// ScenarioStep is a single AI prompt + expected learner reply. Completion
// marks a terminal trigger step (normalized from the "<lesson_completed>"
// task sentinel); such a step carries no expected answer.
type ScenarioStep struct {
	AI             string `json:"ai"`
	AITranslation  string `json:"ai_translation,omitempty"`
	Task           string `json:"task"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
	Completion     bool   `json:"is_completion,omitempty"`
}

// HasConstructor reports whether the constructor module is present and non-empty.
func (s *Script) HasConstructor() bool {
	return s.Constructor != nil && len(s.Constructor.Tasks) > 0
}

// HasFindTheMistake reports whether the error-spotting module is present and non-empty.
func (s *Script) HasFindTheMistake() bool {
	return s.FindTheMistake != nil && len(s.FindTheMistake.Tasks) > 0
}

// HasSituations reports whether the situations module is present and non-empty.
func (s *Script) HasSituations() bool {
	return s.Situations != nil && len(s.Situations.Scenarios) > 0
}
