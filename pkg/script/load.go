package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// rawScript mirrors domain.Script but keeps the union-typed fragments raw so
// normalization can interpret them.
type rawScript struct {
	Goal           string             `json:"goal"`
	Words          domain.Words       `json:"words"`
	Grammar        domain.Grammar     `json:"grammar"`
	Constructor    *rawConstructor    `json:"constructor"`
	FindTheMistake *rawFindTheMistake `json:"find_the_mistake"`
	Situations     *rawSituations     `json:"situations"`
	Completion     string             `json:"completion"`
}

type rawConstructor struct {
	Instruction string            `json:"instruction"`
	SuccessText string            `json:"successText"`
	Tasks       []json.RawMessage `json:"tasks"`
}

type rawFindTheMistake struct {
	Instruction string               `json:"instruction"`
	SuccessText string               `json:"successText"`
	Tasks       []domain.MistakeTask `json:"tasks"`
}

type rawSituations struct {
	Instruction string            `json:"instruction"`
	SuccessText string            `json:"successText"`
	Scenarios   []json.RawMessage `json:"scenarios"`
}

// Load reads and parses a script file.
func Load(path string) (*domain.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes, normalizes and validates a raw script document.
func Parse(data []byte) (*domain.Script, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Decode decodes and normalizes a raw script document without validating it.
func Decode(data []byte) (*domain.Script, error) {
	var raw rawScript
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}

	s := &domain.Script{
		Goal:       strings.TrimSpace(raw.Goal),
		Words:      raw.Words,
		Grammar:    raw.Grammar,
		Completion: strings.TrimSpace(raw.Completion),
	}

	if raw.Constructor != nil {
		c := &domain.Constructor{
			Instruction: raw.Constructor.Instruction,
			SuccessText: raw.Constructor.SuccessText,
		}
		for _, rt := range raw.Constructor.Tasks {
			c.Tasks = append(c.Tasks, decodeConstructorTask(rt))
		}
		s.Constructor = c
	}

	if raw.FindTheMistake != nil {
		s.FindTheMistake = &domain.FindTheMistake{
			Instruction: raw.FindTheMistake.Instruction,
			SuccessText: raw.FindTheMistake.SuccessText,
			Tasks:       raw.FindTheMistake.Tasks,
		}
	}

	if raw.Situations != nil {
		sit := &domain.Situations{
			Instruction: raw.Situations.Instruction,
			SuccessText: raw.Situations.SuccessText,
		}
		for _, rs := range raw.Situations.Scenarios {
			sit.Scenarios = append(sit.Scenarios, decodeScenario(rs))
		}
		s.Situations = sit
	}

	return s, nil
}

// decodeConstructorTask interprets the union-typed "correct" field:
// a plain string becomes a one-element accepted-answer list.
func decodeConstructorTask(raw json.RawMessage) domain.ConstructorTask {
	doc := gjson.ParseBytes(raw)

	task := domain.ConstructorTask{
		Note:        doc.Get("note").String(),
		Instruction: doc.Get("instruction").String(),
	}
	for _, w := range doc.Get("words").Array() {
		task.Words = append(task.Words, w.String())
	}

	correct := doc.Get("correct")
	switch {
	case correct.IsArray():
		for _, c := range correct.Array() {
			if v := strings.TrimSpace(c.String()); v != "" {
				task.Correct = append(task.Correct, v)
			}
		}
	case correct.Type == gjson.String:
		if v := strings.TrimSpace(correct.String()); v != "" {
			task.Correct = []string{v}
		}
	}

	return task
}

// decodeScenario normalizes the single-vs-multi-step duck-typing: a scenario
// without a steps array is rebuilt as a one-step scenario from its flat
// ai/task/expected_answer fields.
func decodeScenario(raw json.RawMessage) domain.Scenario {
	doc := gjson.ParseBytes(raw)

	sc := domain.Scenario{
		Title:     doc.Get("title").String(),
		Situation: doc.Get("situation").String(),
	}

	if steps := doc.Get("steps"); steps.IsArray() {
		for _, st := range steps.Array() {
			sc.Steps = append(sc.Steps, decodeStep(st))
		}
		return sc
	}

	// Legacy flat scenario.
	if doc.Get("ai").Exists() || doc.Get("task").Exists() {
		sc.Steps = []domain.ScenarioStep{decodeStep(doc)}
	}
	return sc
}

func decodeStep(doc gjson.Result) domain.ScenarioStep {
	task := doc.Get("task").String()
	step := domain.ScenarioStep{
		AI:             doc.Get("ai").String(),
		AITranslation:  doc.Get("ai_translation").String(),
		Task:           task,
		ExpectedAnswer: doc.Get("expected_answer").String(),
	}
	if task == domain.TaskLessonCompleted {
		step.Completion = true
		step.Task = ""
	}
	return step
}
