package domain

// Module identifies a top-level lesson phase.
type Module string

const (
	ModuleGoal           Module = "goal"
	ModuleWords          Module = "words"
	ModuleGrammar        Module = "grammar"
	ModuleConstructor    Module = "constructor"
	ModuleFindTheMistake Module = "find_the_mistake"
	ModuleSituations     Module = "situations"
	ModuleCompletion     Module = "completion"
)

// canonicalOrder lists every module in lesson order, present or not.
var canonicalOrder = []Module{
	ModuleGoal,
	ModuleWords,
	ModuleGrammar,
	ModuleConstructor,
	ModuleFindTheMistake,
	ModuleSituations,
	ModuleCompletion,
}

// ModuleSequence returns the modules present in this script, in lesson order.
// Goal, words, grammar and completion are always present; the optional
// modules are included only when they have content.
func ModuleSequence(s *Script) []Module {
	seq := make([]Module, 0, len(canonicalOrder))
	for _, m := range canonicalOrder {
		switch m {
		case ModuleConstructor:
			if !s.HasConstructor() {
				continue
			}
		case ModuleFindTheMistake:
			if !s.HasFindTheMistake() {
				continue
			}
		case ModuleSituations:
			if !s.HasSituations() {
				continue
			}
		}
		seq = append(seq, m)
	}
	return seq
}

// NextModule returns the first present module strictly after m in lesson
// order. If nothing follows, ModuleCompletion is returned (completion is
// always present).
func NextModule(s *Script, m Module) Module {
	seq := ModuleSequence(s)
	for i, cur := range seq {
		if cur == m && i+1 < len(seq) {
			return seq[i+1]
		}
	}
	return ModuleCompletion
}

// Step is the progression cursor: an exact position within the lesson script.
// Module is the discriminator; Index addresses a task or scenario within an
// indexed module and SubIndex addresses a step within a situations scenario.
// The remaining fields implement the continue-gate: when AwaitingContinue is
// set, the learner has answered correctly and must explicitly continue before
// the engine resolves the precomputed Next* destination.
type Step struct {
	Module           Module `json:"type"`
	Index            int    `json:"index,omitempty"`
	SubIndex         int    `json:"subIndex,omitempty"`
	AwaitingContinue bool   `json:"awaitingContinue,omitempty"`
	NextModule       Module `json:"nextType,omitempty"`
	NextIndex        int    `json:"nextIndex,omitempty"`
	NextSubIndex     int    `json:"nextSubIndex,omitempty"`
}

// ClampIndex clamps i into [0, n-1]. Zero-length collections clamp to 0;
// callers must still bounds-check before indexing in that case.
func ClampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
