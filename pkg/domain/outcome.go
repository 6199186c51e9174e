package domain

// Outcome carries the result of one learner action into the engine.
// IsCorrect and Feedback come from the validation oracle (or local drill
// checking); Choice is the raw option for find-the-mistake steps;
// ReactionText is optional oracle-supplied flavour shown alongside a
// correct-answer transition.
type Outcome struct {
	IsCorrect    bool
	Feedback     string
	Choice       string
	ReactionText string
}

// Batch is the atomic result of one engine call: messages to reveal in array
// order, and the step the cursor moves to. A nil Next means the lesson is in
// its terminal state.
type Batch struct {
	Messages []Message
	Next     *Step
}
