// Package cli drives a lesson session at the terminal: it renders engine
// messages, reads learner input and routes it to the right session action.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/lessonloop/lessonloop"
	"github.com/lessonloop/lessonloop/pkg/adapters/localoracle"
	"github.com/lessonloop/lessonloop/pkg/adapters/oraclehttp"
	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
	"github.com/lessonloop/lessonloop/pkg/script"
)

// RunOptions configures one interactive lesson.
type RunOptions struct {
	ScriptPath  string
	UserID      string
	LessonID    string
	OracleURL   string
	UILang      string
	RevealDelay time.Duration
	Restart     bool
	Debug       bool
}

// RunLesson loads a script and plays it through to completion or interrupt.
func RunLesson(opts RunOptions) error {
	logger := createLogger(opts.Debug)

	lesson, err := script.Load(opts.ScriptPath)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	if err := script.Validate(lesson); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}

	engineOpts := []lessonloop.Option{
		lessonloop.WithLogger(logger),
		lessonloop.WithUILang(opts.UILang),
	}
	if opts.OracleURL != "" {
		engineOpts = append(engineOpts, lessonloop.WithOracle(oraclehttp.New(opts.OracleURL)))
	} else {
		engineOpts = append(engineOpts, lessonloop.WithOracle(localoracle.New(lesson)))
	}
	engine := lessonloop.New(lesson, engineOpts...)

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	sess := engine.Session(ports.Key{UserID: opts.UserID, LessonID: opts.LessonID})
	defer sess.Close()

	if _, err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if opts.Restart {
		if _, err := sess.Restart(ctx); err != nil {
			return fmt.Errorf("restart session: %w", err)
		}
	}

	loop := &lessonLoop{
		sess:     sess,
		renderer: newRenderer(os.Stdout, opts.RevealDelay),
		reader:   bufio.NewReader(os.Stdin),
	}
	return loop.run(ctx)
}

type lessonLoop struct {
	sess     sessionAPI
	renderer *renderer
	reader   *bufio.Reader
}

// sessionAPI is the slice of the orchestrator the loop needs; tests swap in
// a scripted fake.
type sessionAPI interface {
	Messages() []domain.Message
	Completed() bool
	SubmitAnswer(ctx context.Context, text string) ([]domain.Message, error)
	SubmitChoice(ctx context.Context, choice string) ([]domain.Message, error)
	Continue(ctx context.Context) ([]domain.Message, error)
}

func (l *lessonLoop) run(ctx context.Context) error {
	for _, msg := range l.sess.Messages() {
		l.renderer.renderMessage(msg)
	}

	for !l.sess.Completed() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload := l.lastModelPayload()
		var (
			fresh []domain.Message
			err   error
		)
		switch p := payload.(type) {
		case *domain.SituationPayload:
			if p.AwaitingContinue {
				l.waitForEnter()
				fresh, err = l.sess.Continue(ctx)
				break
			}
			fresh, err = l.submitText(ctx)
		case *domain.MistakePayload:
			fresh, err = l.submitChoice(ctx, p)
		case *domain.GrammarPayload:
			l.quizDrills(p.Drills)
			fresh, err = l.sess.SubmitAnswer(ctx, "готово")
		default:
			fresh, err = l.submitText(ctx)
		}
		if err != nil {
			return err
		}

		for _, msg := range fresh {
			l.renderer.pause()
			l.renderer.renderMessage(msg)
		}
	}
	return nil
}

// lastModelPayload finds the newest model message and decodes it; the payload
// kind decides how the next learner turn is collected.
func (l *lessonLoop) lastModelPayload() any {
	msgs := l.sess.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleModel {
			continue
		}
		if p, ok := domain.DecodePayload(msgs[i].Text); ok {
			return p
		}
		return nil
	}
	return nil
}

func (l *lessonLoop) submitText(ctx context.Context) ([]domain.Message, error) {
	text := l.readLine("> ")
	if text == "" {
		return nil, nil
	}
	return l.sess.SubmitAnswer(ctx, text)
}

// submitChoice reads A/B until one lands; a wrong pick yields no new messages
// and the explanation is shown locally before the reprompt.
func (l *lessonLoop) submitChoice(ctx context.Context, p *domain.MistakePayload) ([]domain.Message, error) {
	for {
		raw := strings.ToUpper(l.readLine("A/B > "))
		if raw != "A" && raw != "B" {
			continue
		}
		fresh, err := l.sess.SubmitChoice(ctx, raw)
		if err != nil || len(fresh) > 0 {
			return fresh, err
		}
		if p.Explanation != "" {
			l.renderer.printf(l.renderer.feedback, "%s", p.Explanation)
		} else {
			l.renderer.printf(l.renderer.feedback, "%s", domain.DefaultRetryPrompt)
		}
	}
}

// quizDrills runs the bundled drills as a local quiz. Progression does not
// depend on the score; wrong answers just show the expected one.
func (l *lessonLoop) quizDrills(drills []domain.Drill) {
	for i, d := range drills {
		l.renderer.printf(l.renderer.hint, "Упражнение %d из %d", i+1, len(drills))
		l.renderer.printf(l.renderer.tutor, "%s", d.Question)
		for j, opt := range d.Options {
			l.renderer.printf(l.renderer.tutor, "  %c) %s", 'a'+j, opt)
		}
		answer := l.readLine("> ")
		if d.Answer == "" || strings.EqualFold(strings.TrimSpace(answer), d.Answer) {
			l.renderer.printf(l.renderer.success, "Верно!")
			continue
		}
		l.renderer.printf(l.renderer.feedback, "Правильный ответ: %s", d.Answer)
		if d.Explanation != "" {
			l.renderer.printf(l.renderer.translate, "%s", d.Explanation)
		}
	}
}

func (l *lessonLoop) waitForEnter() {
	l.readLine(fmt.Sprintf("[%s] ", domain.ContinueLabel))
}

func (l *lessonLoop) readLine(prompt string) string {
	fmt.Fprint(l.renderer.out, color.New(color.Faint).Sprint(prompt))
	line, err := l.reader.ReadString('\n')
	if err != nil {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(line)
}
