package domain

// Plain-text sentinels carried inside message text. MarkerAudioInput and
// MarkerTextInput declare the expected input mode for the next learner turn;
// MarkerLessonComplete marks the terminal completion message and is scanned
// for during history load and repair.
const (
	MarkerAudioInput     = "<audio_input>"
	MarkerTextInput      = "<text_input>"
	MarkerLessonComplete = "<lesson_complete>"
)

// TaskLessonCompleted is the legacy content sentinel: a situation step whose
// task equals this string is a completion trigger, not a real prompt. Script
// normalization converts it into ScenarioStep.Completion.
const TaskLessonCompleted = "<lesson_completed>"

// ContinueLabel is the caption for the explicit continue action shown on a
// continue-gated message.
const ContinueLabel = "Далее"

// Module separator titles, in the learner's UI language.
const (
	TitleWords          = "Слова"
	TitleGrammar        = "Грамматика"
	TitleConstructor    = "Конструктор"
	TitleFindTheMistake = "Найди ошибку"
	TitleSituations     = "Ситуации"
	TitleCompletion     = "Завершение"
)

// Fallback copy used when the script does not provide its own.
const (
	DefaultWordsSuccess   = "Отлично! Слова разобраны."
	DefaultGrammarSuccess = "Верно! Двигаемся дальше."
	DefaultModuleSuccess  = "Отлично! Модуль пройден."
	DefaultRetryPrompt    = "Попробуй ещё раз."
)
