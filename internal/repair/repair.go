// Package repair reconciles persisted message history against a lesson
// script. Histories can be incomplete or out of order after network races,
// partial writes or concurrent sessions; instead of trusting the tail
// blindly, repair keeps the longest internally-consistent prefix and
// recomputes the cursor from it.
package repair

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// Result is the outcome of a repair pass.
type Result struct {
	Messages []domain.Message
	Step     *domain.Step
	Repaired bool
	Reasons  []string
}

// Repair validates module order and per-module index continuity over the
// message history and truncates to the last valid prefix. progressStep seeds
// the cursor when no usable snapshot survives in the history.
func Repair(s *domain.Script, msgs []domain.Message, progressStep *domain.Step) Result {
	if s == nil {
		return Result{Messages: msgs, Step: progressStep}
	}

	order := map[domain.Module]int{}
	for i, m := range domain.ModuleSequence(s) {
		order[m] = i
	}

	var reasons []string
	cut := len(msgs)       // exclusive end of the valid prefix
	sawValidModel := false // at least one model message passed all checks

	lastPos := -1
	prevIdx := map[domain.Module]int{} // last seen index per indexed module
	prevSub := -1                      // last seen subIndex within situations

	for i, msg := range msgs {
		if msg.Role != domain.RoleModel {
			continue // user turns ride along inside the prefix
		}

		mod, idx, sub, hasIdx := classify(msg)
		if mod == "" {
			cut, reasons = i, append(reasons, fmt.Sprintf("message %d: unknown module", i))
			break
		}

		p, present := order[mod]
		if !present {
			cut, reasons = i, append(reasons, fmt.Sprintf("message %d: module %s not in script", i, mod))
			break
		}
		if p < lastPos {
			cut, reasons = i, append(reasons, fmt.Sprintf("message %d: module order moved backward to %s", i, mod))
			break
		}
		if p > lastPos+1 {
			cut, reasons = i, append(reasons, fmt.Sprintf("message %d: module order jumped to %s", i, mod))
			break
		}

		entering := p == lastPos+1

		if hasIdx && indexedModule(mod) {
			if bad, reason := checkIndex(mod, entering, idx, sub, prevIdx, prevSub); bad {
				cut, reasons = i, append(reasons, fmt.Sprintf("message %d: %s", i, reason))
				break
			}
			prevIdx[mod] = idx
			if mod == domain.ModuleSituations {
				prevSub = sub
			}
		}

		lastPos = p
		sawValidModel = true
	}

	truncated := cut < len(msgs)

	var out []domain.Message
	if truncated && !sawValidModel {
		// No valid prefix at all: best effort. Keep everything, fix only the
		// trailing user turn, and take any cursor snapshot we can find.
		reasons = append(reasons, "no valid prefix; keeping history as-is")
		out = msgs
	} else {
		out = msgs[:cut]
	}

	trimmed := lo.DropRightWhile(out, func(m domain.Message) bool {
		return m.Role != domain.RoleModel
	})
	if len(trimmed) != len(out) {
		reasons = append(reasons, "dropped trailing user message")
	}
	out = trimmed

	return Result{
		Messages: out,
		Step:     recomputeStep(out, progressStep),
		Repaired: len(out) != len(msgs),
		Reasons:  reasons,
	}
}

// classify extracts a model message's module and position: from its step
// snapshot when present, otherwise inferred from the payload discriminator
// or the completion sentinel. An empty module means unknown.
func classify(msg domain.Message) (mod domain.Module, idx, sub int, hasIdx bool) {
	if msg.Step != nil {
		return msg.Step.Module, msg.Step.Index, msg.Step.SubIndex, true
	}
	if domain.IsCompletionText(msg.Text) {
		return domain.ModuleCompletion, 0, 0, false
	}
	switch domain.PayloadKindOf(msg.Text) {
	case domain.KindGoal:
		return domain.ModuleGoal, 0, 0, false
	case domain.KindWordsList:
		return domain.ModuleWords, 0, 0, false
	case domain.KindGrammar, domain.KindAudioExercise:
		return domain.ModuleGrammar, 0, 0, false
	case domain.KindMistake:
		return domain.ModuleFindTheMistake, 0, 0, false
	case domain.KindSituation:
		return domain.ModuleSituations, 0, 0, false
	}
	// Sections and text exercises are ambiguous without a snapshot.
	return "", 0, 0, false
}

// indexedModule reports whether a module's messages must satisfy index
// continuity. Grammar is excluded: its index encodes which content path was
// taken, not a task sequence.
func indexedModule(m domain.Module) bool {
	return m == domain.ModuleConstructor ||
		m == domain.ModuleFindTheMistake ||
		m == domain.ModuleSituations
}

// checkIndex enforces no-gap advancement: an index may repeat (retries,
// continue-gates) or grow by exactly one; situations additionally reset
// subIndex to zero on a scenario change.
func checkIndex(mod domain.Module, entering bool, idx, sub int, prevIdx map[domain.Module]int, prevSub int) (bool, string) {
	if entering {
		if idx != 0 {
			return true, fmt.Sprintf("%s entered at index %d", mod, idx)
		}
		if mod == domain.ModuleSituations && sub != 0 {
			return true, fmt.Sprintf("situations entered at subIndex %d", sub)
		}
		return false, ""
	}

	prev := prevIdx[mod]
	if mod != domain.ModuleSituations {
		if idx != prev && idx != prev+1 {
			return true, fmt.Sprintf("%s index gap: %d after %d", mod, idx, prev)
		}
		return false, ""
	}

	switch {
	case idx == prev && (sub == prevSub || sub == prevSub+1):
		return false, ""
	case idx == prev+1 && sub == 0:
		return false, ""
	}
	return true, fmt.Sprintf("situations position gap: %d/%d after %d/%d", idx, sub, prev, prevSub)
}

// recomputeStep derives the cursor from the repaired history: the last model
// snapshot, then a completion sentinel scan, then the externally supplied
// progress step.
func recomputeStep(msgs []domain.Message, progressStep *domain.Step) *domain.Step {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleModel {
			continue
		}
		if msgs[i].Step != nil {
			step := *msgs[i].Step
			return &step
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleModel && domain.IsCompletionText(msgs[i].Text) {
			return &domain.Step{Module: domain.ModuleCompletion}
		}
	}
	return progressStep
}
