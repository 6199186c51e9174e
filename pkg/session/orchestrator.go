package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lessonloop/lessonloop/internal/engine"
	"github.com/lessonloop/lessonloop/internal/logging"
	"github.com/lessonloop/lessonloop/internal/repair"
	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/observability"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

const lockTTL = 30 * time.Second

// Orchestrator drives one lesson attempt.
type Orchestrator struct {
	key      ports.Key
	script   *domain.Script
	store    ports.MessageStore
	progress ports.ProgressStore
	oracle   ports.Oracle
	locker   ports.DistributedLocker
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	metrics  *observability.Metrics
	uiLang   string

	saveAttempts int
	saveBackoff  time.Duration

	mu        sync.Mutex
	live      []domain.Message
	current   *domain.Step
	epoch     uint64
	inFlight  bool
	closed    bool
	resetting int

	jobs  chan saveJob
	done  chan struct{}
	unsub ports.Unsubscribe
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) { o.hooks = hooks }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLocker enables distributed locking around loads and advancements.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithUILang sets the language hint passed to the oracle.
func WithUILang(lang string) Option {
	return func(o *Orchestrator) { o.uiLang = lang }
}

// WithSaveRetry tunes the persistence retry policy.
func WithSaveRetry(attempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		o.saveAttempts = attempts
		o.saveBackoff = backoff
	}
}

// New creates an orchestrator for one (user, lesson) attempt and starts its
// save worker. Call Start before any learner action, and Close when done.
func New(key ports.Key, script *domain.Script, store ports.MessageStore, progress ports.ProgressStore, oracle ports.Oracle, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		key:          key,
		script:       script,
		store:        store,
		progress:     progress,
		oracle:       oracle,
		logger:       logging.NewNop(),
		saveAttempts: 3,
		saveBackoff:  100 * time.Millisecond,
		jobs:         make(chan saveJob, 256),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	go o.saveWorker()
	return o
}

// Start loads and repairs the persisted state, seeding a fresh attempt when
// none exists, and returns the full message history to render.
func (o *Orchestrator) Start(ctx context.Context) ([]domain.Message, error) {
	var msgs []domain.Message
	err := o.withLock(ctx, func(ctx context.Context) error {
		history, err := o.store.LoadMessages(ctx, o.key)
		if err != nil {
			return err
		}

		var progressStep *domain.Step
		if p, err := o.progress.LoadProgress(ctx, o.key); err == nil && p != nil {
			progressStep = p.Step
		}

		res := repair.Repair(o.script, history, progressStep)
		if res.Repaired {
			o.logger.Warn("repaired persisted history",
				"session", o.key.String(),
				"dropped", len(history)-len(res.Messages),
				"reasons", res.Reasons,
			)
			if o.metrics != nil {
				o.metrics.Repairs.Inc()
			}
			if o.hooks.OnRepair != nil {
				o.hooks.OnRepair(ctx, &domain.RepairEvent{
					EventBase: eventBase(domain.EventRepair, o.key),
					Dropped:   len(history) - len(res.Messages),
					Reasons:   res.Reasons,
				})
			}
		}

		o.mu.Lock()
		o.live = res.Messages
		o.current = res.Step
		epoch := o.epoch
		o.mu.Unlock()

		if len(res.Messages) == 0 {
			batch := engine.CreateInitial(o.script)
			o.applyBatch(ctx, epoch, batch, domain.Outcome{})
		}

		if o.unsub == nil {
			unsub, err := o.store.Subscribe(ctx, o.key, o.reconcile)
			if err != nil {
				o.logger.Warn("message subscription unavailable", "err", err)
			} else {
				o.unsub = unsub
			}
		}

		msgs = o.Messages()
		return nil
	})
	return msgs, err
}

// SubmitAnswer validates a free-text answer and advances the lesson.
// It returns only the newly emitted messages.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, text string) ([]domain.Message, error) {
	cur, epoch, err := o.beginAdvance()
	if err != nil {
		return nil, err
	}
	defer o.endAdvance()

	o.appendUserMessage(epoch, text, cur)

	outcome := o.answerOutcome(ctx, *cur, text)

	var emitted []domain.Message
	err = o.withLock(ctx, func(ctx context.Context) error {
		batch := engine.Advance(o.script, *cur, outcome)
		emitted = o.applyBatch(ctx, epoch, batch, outcome)
		return nil
	})
	return emitted, err
}

// SubmitChoice advances a find-the-mistake step by exact choice match. A
// wrong choice produces no messages and leaves the step unchanged; the UI is
// expected to show feedback inline.
func (o *Orchestrator) SubmitChoice(ctx context.Context, choice string) ([]domain.Message, error) {
	cur, epoch, err := o.beginAdvance()
	if err != nil {
		return nil, err
	}
	defer o.endAdvance()

	var emitted []domain.Message
	err = o.withLock(ctx, func(ctx context.Context) error {
		batch := engine.Advance(o.script, *cur, domain.Outcome{Choice: choice})
		emitted = o.applyBatch(ctx, epoch, batch, domain.Outcome{Choice: choice})
		return nil
	})
	return emitted, err
}

// Continue acknowledges the current message and moves on: past the goal,
// past the vocabulary list, past a locally-checked drills bundle, or through
// a continue-gate. Positions that require a graded answer reject it with
// ErrContinueNotAllowed.
func (o *Orchestrator) Continue(ctx context.Context) ([]domain.Message, error) {
	cur, epoch, err := o.beginAdvance()
	if err != nil {
		return nil, err
	}
	defer o.endAdvance()

	if !o.continueAllowed(*cur) {
		return nil, domain.ErrContinueNotAllowed
	}

	var emitted []domain.Message
	err = o.withLock(ctx, func(ctx context.Context) error {
		batch := engine.Advance(o.script, *cur, domain.Outcome{IsCorrect: true})
		emitted = o.applyBatch(ctx, epoch, batch, domain.Outcome{IsCorrect: true})
		return nil
	})
	return emitted, err
}

// Restart abandons the attempt and begins again from the goal. The epoch bump
// invalidates anything still queued for the old attempt, and the store reset
// rides the serialized save chain so a write that slipped past the epoch
// check still lands before the reset and gets wiped by it.
func (o *Orchestrator) Restart(ctx context.Context) ([]domain.Message, error) {
	var msgs []domain.Message
	err := o.withLock(ctx, func(ctx context.Context) error {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return domain.ErrSessionClosed
		}
		o.epoch++
		epoch := o.epoch
		o.live = nil
		o.current = nil
		o.inFlight = false
		o.resetting++
		o.mu.Unlock()

		if !o.enqueue(saveJob{epoch: epoch, reset: true}) {
			// Queue unavailable: reset in place instead.
			o.mu.Lock()
			o.resetting--
			o.mu.Unlock()
			if err := o.store.Reset(ctx, o.key); err != nil {
				return err
			}
		}

		batch := engine.CreateInitial(o.script)
		msgs = o.applyBatch(ctx, epoch, batch, domain.Outcome{})
		return nil
	})
	return msgs, err
}

// Messages returns a copy of the live message array.
func (o *Orchestrator) Messages() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Message, len(o.live))
	copy(out, o.live)
	return out
}

// CurrentStep returns the cursor, or nil when the lesson is terminal.
func (o *Orchestrator) CurrentStep() *domain.Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	step := *o.current
	return &step
}

// Completed reports whether the lesson reached its terminal state.
func (o *Orchestrator) Completed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.live) - 1; i >= 0; i-- {
		if domain.IsCompletionText(o.live[i].Text) {
			return true
		}
	}
	return false
}

// Close stops the save worker and the store subscription. Queued saves are
// drained first.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	if o.unsub != nil {
		o.unsub()
	}
	close(o.jobs)
	<-o.done
}

// beginAdvance guards against double-advancement from rapid repeated input.
func (o *Orchestrator) beginAdvance() (*domain.Step, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, 0, domain.ErrSessionClosed
	}
	if o.inFlight {
		return nil, 0, domain.ErrAnswerInFlight
	}
	if o.current == nil {
		// Terminal: nothing to advance.
		return nil, 0, domain.ErrSessionNotFound
	}
	o.inFlight = true
	step := *o.current
	return &step, o.epoch, nil
}

func (o *Orchestrator) endAdvance() {
	o.mu.Lock()
	o.inFlight = false
	o.mu.Unlock()
}

// answerOutcome grades the answer for oracle-backed positions only.
// Acknowledgement steps (goal, words, a continue-gate, the completion
// trigger) advance unconditionally, and find-the-mistake text is matched
// locally as a choice; the oracle never sees any of them.
func (o *Orchestrator) answerOutcome(ctx context.Context, cur domain.Step, text string) domain.Outcome {
	if cur.AwaitingContinue {
		return domain.Outcome{IsCorrect: true}
	}
	switch cur.Module {
	case domain.ModuleGrammar, domain.ModuleConstructor, domain.ModuleSituations:
		return o.checkAnswer(ctx, cur, text)
	case domain.ModuleFindTheMistake:
		return domain.Outcome{Choice: text}
	}
	return domain.Outcome{IsCorrect: true}
}

// continueAllowed reports whether the current position advances without a
// graded answer: the goal and vocabulary acknowledgements, the drills bundle
// (checked client-side), a continue-gate, or the completion trigger. An
// explicit continue anywhere else would bypass grading.
func (o *Orchestrator) continueAllowed(cur domain.Step) bool {
	if cur.AwaitingContinue {
		return true
	}
	switch cur.Module {
	case domain.ModuleGoal, domain.ModuleWords, domain.ModuleCompletion:
		return true
	case domain.ModuleGrammar:
		return cur.Index == 0 && len(o.script.Grammar.Drills) > 0
	}
	return false
}

// checkAnswer consults the oracle, pre-normalizing any failure into a
// regular incorrect outcome so the engine never sees oracle errors.
func (o *Orchestrator) checkAnswer(ctx context.Context, step domain.Step, answer string) domain.Outcome {
	started := time.Now()
	result, err := o.oracle.Check(ctx, ports.CheckRequest{
		Step:   step,
		Answer: answer,
		UILang: o.uiLang,
	})
	if o.metrics != nil {
		o.metrics.OracleLatency.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		o.logger.Warn("oracle failure treated as incorrect", "err", err)
		if o.metrics != nil {
			o.metrics.OracleFailures.Inc()
		}
		return domain.Outcome{IsCorrect: false, Feedback: domain.DefaultRetryPrompt}
	}
	return domain.Outcome{
		IsCorrect:    result.IsCorrect,
		Feedback:     result.Feedback,
		ReactionText: result.ReactionText,
	}
}

// appendUserMessage renders the learner's turn optimistically and queues its
// persistence.
func (o *Orchestrator) appendUserMessage(epoch uint64, text string, step *domain.Step) {
	snapshot := *step
	msg := domain.Message{Role: domain.RoleUser, Text: text, Step: &snapshot}

	o.mu.Lock()
	if o.epoch == epoch {
		o.live = append(o.live, msg)
	}
	o.mu.Unlock()

	o.enqueue(saveJob{epoch: epoch, msg: msg})
}

// applyBatch appends engine output, moves the cursor, and queues message and
// progress persistence. Stale epochs are silently discarded.
func (o *Orchestrator) applyBatch(ctx context.Context, epoch uint64, batch domain.Batch, outcome domain.Outcome) []domain.Message {
	if len(batch.Messages) == 0 && batch.Next == nil {
		return nil // safe-terminal no-op from the engine
	}

	o.mu.Lock()
	if o.closed || o.epoch != epoch {
		o.mu.Unlock()
		return nil
	}

	o.live = append(o.live, batch.Messages...)
	if len(batch.Messages) > 0 || batch.Next != nil {
		o.current = batch.Next
	}
	from := *o.currentOrCompletion()
	o.mu.Unlock()

	if len(batch.Messages) == 0 && batch.Next != nil {
		return nil // wrong choice: nothing emitted, nothing persisted
	}

	for _, msg := range batch.Messages {
		o.enqueue(saveJob{epoch: epoch, msg: msg})
	}

	progress := domain.Progress{Step: batch.Next}
	if batch.Next == nil {
		now := time.Now().UTC()
		progress.CompletedAt = &now
		progress.Step = &domain.Step{Module: domain.ModuleCompletion}
	}
	o.enqueue(saveJob{epoch: epoch, progress: &progress})

	if o.hooks.OnAdvance != nil {
		o.hooks.OnAdvance(ctx, &domain.AdvanceEvent{
			EventBase: eventBase(domain.EventAdvance, o.key),
			Module:    from.Module,
			Index:     from.Index,
			SubIndex:  from.SubIndex,
			Correct:   outcome.IsCorrect,
			Emitted:   len(batch.Messages),
			Terminal:  batch.Next == nil,
		})
	}
	if o.metrics != nil {
		result := "incorrect"
		if outcome.IsCorrect {
			result = "correct"
		}
		o.metrics.Advances.WithLabelValues(string(from.Module), result).Inc()
	}
	return batch.Messages
}

// currentOrCompletion must be called with o.mu held.
func (o *Orchestrator) currentOrCompletion() *domain.Step {
	if o.current != nil {
		return o.current
	}
	return &domain.Step{Module: domain.ModuleCompletion}
}

// withLock wraps fn in the distributed lock when one is configured.
func (o *Orchestrator) withLock(ctx context.Context, fn func(context.Context) error) error {
	if o.locker == nil {
		return fn(ctx)
	}
	unlock, err := o.locker.Lock(ctx, o.key.String(), lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			o.logger.Warn("failed to release distributed lock (will expire via TTL)",
				"session", o.key.String(), "err", err)
		}
	}()
	return fn(ctx)
}

func eventBase(t domain.EventType, key ports.Key) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now().UTC(), Type: t, SessionID: key.String()}
}
