package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// renderer turns message payloads into terminal output. Grammar explanations
// are markdown and go through glamour; everything else is colored plain text.
type renderer struct {
	out      io.Writer
	delay    time.Duration
	tty      bool
	markdown func(string) (string, error)

	separator *color.Color
	tutor     *color.Color
	translate *color.Color
	feedback  *color.Color
	success   *color.Color
	hint      *color.Color
}

func newRenderer(out io.Writer, delay time.Duration) *renderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	if !tty {
		color.NoColor = true
		delay = 0
	}
	// Let termenv pick the profile once so glamour and color agree on depth.
	termenv.ColorProfile()

	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	render := func(s string) (string, error) { return s + "\n", nil }
	if err == nil {
		render = md.Render
	}

	return &renderer{
		out:       out,
		delay:     delay,
		tty:       tty,
		markdown:  render,
		separator: color.New(color.FgHiMagenta, color.Bold),
		tutor:     color.New(color.FgCyan),
		translate: color.New(color.FgHiBlack),
		feedback:  color.New(color.FgRed),
		success:   color.New(color.FgGreen),
		hint:      color.New(color.FgYellow),
	}
}

func (r *renderer) pause() {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
}

func (r *renderer) printf(c *color.Color, format string, args ...any) {
	fmt.Fprintln(r.out, c.Sprintf(format, args...))
}

// renderMessage prints one message. User messages echo dimmed; model messages
// dispatch on payload kind, with plain text falling through as tutor speech.
func (r *renderer) renderMessage(msg domain.Message) {
	if msg.Role == domain.RoleUser {
		r.printf(r.translate, "  > %s", msg.Text)
		return
	}

	payload, ok := domain.DecodePayload(msg.Text)
	if !ok {
		r.renderPlain(msg.Text)
		return
	}

	switch p := payload.(type) {
	case *domain.GoalPayload:
		r.printf(r.separator, "Цель урока")
		r.printf(r.tutor, "%s", p.Text)
	case *domain.SectionPayload:
		r.printf(r.separator, "── %s ──", p.Title)
		if p.Content != "" {
			r.printf(r.tutor, "%s", p.Content)
		}
	case *domain.WordsListPayload:
		r.renderWords(p)
	case *domain.GrammarPayload:
		r.renderGrammar(p)
	case *domain.AudioExercisePayload:
		r.printf(r.tutor, "%s", p.Content)
		r.printf(r.hint, "🎤 Скажи или напиши ответ.")
	case *domain.TextExercisePayload:
		if p.Instruction != "" {
			r.printf(r.hint, "%s", p.Instruction)
		}
		r.printf(r.tutor, "%s", p.Content)
	case *domain.MistakePayload:
		r.renderMistake(p)
	case *domain.SituationPayload:
		r.renderSituation(p)
	default:
		r.renderPlain(msg.Text)
	}
}

// renderPlain handles sentinel-bearing plain text (retry feedback, the
// completion message) by stripping the markers and coloring the rest.
func (r *renderer) renderPlain(text string) {
	done := strings.Contains(text, domain.MarkerLessonComplete)
	for _, marker := range []string{domain.MarkerAudioInput, domain.MarkerTextInput, domain.MarkerLessonComplete} {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if done {
		r.printf(r.success, "%s", text)
		return
	}
	r.printf(r.feedback, "%s", text)
}

func (r *renderer) renderWords(p *domain.WordsListPayload) {
	if p.Instruction != "" {
		r.printf(r.hint, "%s", p.Instruction)
	}
	for _, item := range p.Items {
		r.printf(r.tutor, "  %s — %s", item.Word, item.Translation)
		if item.Context != "" {
			r.printf(r.translate, "    %s", item.Context)
		}
		if item.ContextTranslation != "" {
			r.printf(r.translate, "    %s", item.ContextTranslation)
		}
	}
	r.printf(r.hint, "Когда будешь готов, напиши что-нибудь, чтобы продолжить.")
}

func (r *renderer) renderGrammar(p *domain.GrammarPayload) {
	if out, err := r.markdown(p.Explanation); err == nil {
		fmt.Fprint(r.out, out)
	} else {
		r.printf(r.tutor, "%s", p.Explanation)
	}
}

func (r *renderer) renderMistake(p *domain.MistakePayload) {
	r.printf(r.hint, "Задание %d из %d. Где ошибка?", p.TaskIndex+1, p.Total)
	for i, opt := range p.Options {
		r.printf(r.tutor, "  %c) %s", 'A'+i, opt)
	}
}

func (r *renderer) renderSituation(p *domain.SituationPayload) {
	if p.Title != "" {
		r.printf(r.separator, "%s", p.Title)
	}
	if p.Situation != "" {
		r.printf(r.translate, "%s", p.Situation)
	}
	if p.Feedback != "" {
		c := r.feedback
		if p.Result != "incorrect" {
			c = r.success
		}
		r.printf(c, "%s", p.Feedback)
	}
	if p.AI != "" {
		r.printf(r.tutor, "%s", p.AI)
		if p.AITranslation != "" {
			r.printf(r.translate, "  (%s)", p.AITranslation)
		}
	}
	if p.Task != "" {
		r.printf(r.hint, "%s", p.Task)
	}
	if p.AwaitingContinue {
		label := p.ContinueLabel
		if label == "" {
			label = domain.ContinueLabel
		}
		r.printf(r.hint, "[Enter] %s", label)
	}
}
