package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop/pkg/adapters/localoracle"
	"github.com/lessonloop/lessonloop/pkg/adapters/memory"
	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

var testKey = ports.Key{UserID: "u1", LessonID: "l1"}

// sessionScript is the shortest playable lesson: goal, words, grammar (text
// exercise expecting "sí"), completion.
func sessionScript() *domain.Script {
	return &domain.Script{
		Goal:  "Учимся соглашаться.",
		Words: domain.Words{Items: []domain.WordItem{{Word: "sí", Translation: "да"}}},
		Grammar: domain.Grammar{
			Explanation:  "Sí значит «да».",
			TextExercise: &domain.TextExercise{Expected: "sí"},
		},
		Completion: "Готово!",
	}
}

// mistakeScript adds a find-the-mistake module for choice tests.
func mistakeScript() *domain.Script {
	s := sessionScript()
	s.FindTheMistake = &domain.FindTheMistake{
		Tasks: []domain.MistakeTask{
			{Options: []string{"sí", "si"}, Answer: "A", Explanation: "Нужен акцент."},
		},
	}
	return s
}

// fakeOracle lets tests script the verdict or fail outright.
type fakeOracle struct {
	mu     sync.Mutex
	check  func(ports.CheckRequest) (ports.CheckResult, error)
	calls  int
	gotReq ports.CheckRequest
}

func (f *fakeOracle) Check(ctx context.Context, req ports.CheckRequest) (ports.CheckResult, error) {
	f.mu.Lock()
	f.calls++
	f.gotReq = req
	fn := f.check
	f.mu.Unlock()
	if fn == nil {
		return ports.CheckResult{IsCorrect: true}, nil
	}
	return fn(req)
}

func newSession(t *testing.T, s *domain.Script, oracle ports.Oracle, opts ...Option) *Orchestrator {
	t.Helper()
	store := memory.NewStore()
	if oracle == nil {
		oracle = localoracle.New(s)
	}
	o := New(testKey, s, store, store, oracle, opts...)
	t.Cleanup(o.Close)
	return o
}

func waitPersisted(t *testing.T, store ports.MessageStore, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		msgs, err := store.LoadMessages(context.Background(), testKey)
		return err == nil && len(msgs) >= want
	}, 2*time.Second, 10*time.Millisecond, "expected %d persisted messages", want)
}

func TestStart_SeedsFreshAttempt(t *testing.T) {
	o := newSession(t, sessionScript(), nil)

	msgs, err := o.Start(context.Background())
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	require.Equal(t, domain.KindGoal, domain.PayloadKindOf(msgs[0].Text))
	require.Equal(t, &domain.Step{Module: domain.ModuleGoal}, o.CurrentStep())
	require.False(t, o.Completed())
}

func TestStart_ResumesAndRepairs(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	ctx := context.Background()

	// Persist a history with a trailing user turn nobody answered.
	goalStep := &domain.Step{Module: domain.ModuleGoal}
	_, err := store.SaveMessage(ctx, testKey, domain.Message{
		Role: domain.RoleModel,
		Text: domain.EncodePayload(domain.GoalPayload{Kind: domain.KindGoal, Text: s.Goal}),
		Step: goalStep,
	})
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, testKey, domain.Message{Role: domain.RoleUser, Text: "dangling"})
	require.NoError(t, err)

	var repaired *domain.RepairEvent
	o := New(testKey, s, store, store, localoracle.New(s), WithHooks(domain.LifecycleHooks{
		OnRepair: func(ctx context.Context, e *domain.RepairEvent) { repaired = e },
	}))
	defer o.Close()

	msgs, err := o.Start(ctx)
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	require.Equal(t, domain.ModuleGoal, o.CurrentStep().Module)
	require.NotNil(t, repaired)
	require.Equal(t, 1, repaired.Dropped)
}

func TestSubmitAnswer_AdvancesAndPersists(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	defer o.Close()
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)

	emitted, err := o.SubmitAnswer(ctx, "понял")
	require.NoError(t, err)

	// Goal acknowledgement yields the words separator plus the list.
	require.Len(t, emitted, 2)
	require.Equal(t, &domain.Step{Module: domain.ModuleWords}, o.CurrentStep())

	// Live history holds goal, the user turn, and both new model messages.
	live := o.Messages()
	require.Len(t, live, 4)
	require.Equal(t, domain.RoleUser, live[1].Role)
	require.Equal(t, "понял", live[1].Text)

	// Everything lands in the store, in order, with IDs assigned.
	waitPersisted(t, store, 4)
	stored, err := store.LoadMessages(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, msg := range stored {
		require.NotEmpty(t, msg.ID)
	}

	// The optimistic entries picked up their confirmed IDs.
	require.Eventually(t, func() bool {
		for _, msg := range o.Messages() {
			if msg.ID == "" {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitAnswer_IncorrectRetriesInPlace(t *testing.T) {
	s := sessionScript()
	o := newSession(t, s, nil)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // into words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // into grammar
	require.NoError(t, err)
	require.Equal(t, domain.ModuleGrammar, o.CurrentStep().Module)

	before := *o.CurrentStep()
	emitted, err := o.SubmitAnswer(ctx, "нет")
	require.NoError(t, err)

	require.Len(t, emitted, 1)
	require.Contains(t, emitted[0].Text, domain.DefaultRetryPrompt)
	require.Equal(t, &before, o.CurrentStep())
}

func TestSubmitAnswer_OracleFailureNormalized(t *testing.T) {
	oracle := &fakeOracle{check: func(ports.CheckRequest) (ports.CheckResult, error) {
		return ports.CheckResult{}, errors.New("oracle down")
	}}
	s := sessionScript()
	o := newSession(t, s, oracle)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // grammar
	require.NoError(t, err)

	// The failure becomes a plain incorrect outcome, never an error.
	emitted, err := o.SubmitAnswer(ctx, "sí")
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	require.Contains(t, emitted[0].Text, domain.DefaultRetryPrompt)
	require.Equal(t, domain.ModuleGrammar, o.CurrentStep().Module)
}

func TestSubmitAnswer_PassesUILangToOracle(t *testing.T) {
	oracle := &fakeOracle{}
	s := sessionScript()
	o := newSession(t, s, oracle, WithUILang("ru"))
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // grammar
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "sí")
	require.NoError(t, err)

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	require.Equal(t, "ru", oracle.gotReq.UILang)
	require.Equal(t, domain.ModuleGrammar, oracle.gotReq.Step.Module)
}

func TestSubmitAnswer_OracleOnlyForGradedModules(t *testing.T) {
	oracle := &fakeOracle{}
	o := newSession(t, sessionScript(), oracle)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)

	_, err = o.SubmitAnswer(ctx, "понял") // goal acknowledgement
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "выучил") // vocabulary acknowledgement
	require.NoError(t, err)

	oracle.mu.Lock()
	calls := oracle.calls
	oracle.mu.Unlock()
	require.Zero(t, calls, "acknowledgement steps must not reach the oracle")

	// The grammar exercise is graded and does.
	_, err = o.SubmitAnswer(ctx, "sí")
	require.NoError(t, err)

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	require.Equal(t, 1, oracle.calls)
	require.Equal(t, domain.ModuleGrammar, oracle.gotReq.Step.Module)
}

func TestSubmitAnswer_MistakeTextMatchedLocally(t *testing.T) {
	oracle := &fakeOracle{}
	o := newSession(t, mistakeScript(), oracle)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	for _, answer := range []string{"ok", "ok", "sí"} {
		_, err = o.SubmitAnswer(ctx, answer)
		require.NoError(t, err)
	}
	require.Equal(t, domain.ModuleFindTheMistake, o.CurrentStep().Module)

	oracle.mu.Lock()
	callsBefore := oracle.calls
	oracle.mu.Unlock()

	// A choice typed as free text is matched against the task answer without
	// consulting the oracle.
	emitted, err := o.SubmitAnswer(ctx, "A")
	require.NoError(t, err)
	require.NotEmpty(t, emitted)
	require.True(t, o.Completed())

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	require.Equal(t, callsBefore, oracle.calls)
}

func TestSubmitChoice_WrongChoiceIsSilent(t *testing.T) {
	s := mistakeScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	defer o.Close()
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // grammar
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "sí") // into find_the_mistake
	require.NoError(t, err)
	require.Equal(t, domain.ModuleFindTheMistake, o.CurrentStep().Module)

	liveBefore := len(o.Messages())
	emitted, err := o.SubmitChoice(ctx, "B")
	require.NoError(t, err)

	require.Empty(t, emitted)
	require.Len(t, o.Messages(), liveBefore)
	require.Equal(t, domain.ModuleFindTheMistake, o.CurrentStep().Module)
}

func TestSubmitChoice_CorrectChoiceCompletes(t *testing.T) {
	s := mistakeScript()
	o := newSession(t, s, nil)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	for _, answer := range []string{"ok", "ok", "sí"} {
		_, err = o.SubmitAnswer(ctx, answer)
		require.NoError(t, err)
	}

	emitted, err := o.SubmitChoice(ctx, "A")
	require.NoError(t, err)

	require.NotEmpty(t, emitted)
	require.True(t, o.Completed())
	require.Nil(t, o.CurrentStep())
}

func TestInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	oracle := &fakeOracle{check: func(ports.CheckRequest) (ports.CheckResult, error) {
		<-release
		return ports.CheckResult{IsCorrect: true}, nil
	}}
	o := newSession(t, sessionScript(), oracle)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // grammar, where answers are graded
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitAnswer(ctx, "first")
		done <- err
	}()

	// Wait until the first submission is inside the oracle call.
	require.Eventually(t, func() bool {
		oracle.mu.Lock()
		defer oracle.mu.Unlock()
		return oracle.calls == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err = o.SubmitAnswer(ctx, "second")
	require.ErrorIs(t, err, domain.ErrAnswerInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestContinue_AdvancesUngradedPositions(t *testing.T) {
	s := sessionScript()
	s.Grammar = domain.Grammar{
		Explanation: "Sí значит «да».",
		Drills:      []domain.Drill{{Question: "¿sí?", Answer: "да"}},
	}
	oracle := &fakeOracle{}
	o := newSession(t, s, oracle)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)

	_, err = o.Continue(ctx) // past the goal
	require.NoError(t, err)
	require.Equal(t, domain.ModuleWords, o.CurrentStep().Module)

	_, err = o.Continue(ctx) // past the vocabulary
	require.NoError(t, err)
	require.Equal(t, &domain.Step{Module: domain.ModuleGrammar}, o.CurrentStep())

	_, err = o.Continue(ctx) // past the locally-checked drills bundle
	require.NoError(t, err)
	require.True(t, o.Completed())

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	require.Zero(t, oracle.calls)
}

func TestContinue_RejectedWhereAnswerRequired(t *testing.T) {
	s := sessionScript() // legacy grammar exercise expects a typed answer
	o := newSession(t, s, nil)
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // words
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok") // grammar exercise
	require.NoError(t, err)
	require.Equal(t, &domain.Step{Module: domain.ModuleGrammar, Index: 1}, o.CurrentStep())

	// Continuing here would skip the exercise without grading.
	_, err = o.Continue(ctx)
	require.ErrorIs(t, err, domain.ErrContinueNotAllowed)
	require.Equal(t, &domain.Step{Module: domain.ModuleGrammar, Index: 1}, o.CurrentStep())

	// A real answer still lands afterwards.
	_, err = o.SubmitAnswer(ctx, "sí")
	require.NoError(t, err)
	require.True(t, o.Completed())
}

func TestRestart_BeginsFresh(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	defer o.Close()
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok")
	require.NoError(t, err)
	require.Greater(t, len(o.Messages()), 1)

	msgs, err := o.Restart(ctx)
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	require.Equal(t, domain.KindGoal, domain.PayloadKindOf(msgs[0].Text))
	require.Equal(t, &domain.Step{Module: domain.ModuleGoal}, o.CurrentStep())
	require.Len(t, o.Messages(), 1)

	// The store history restarts too.
	require.Eventually(t, func() bool {
		stored, err := store.LoadMessages(ctx, testKey)
		return err == nil && len(stored) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// gatedStore defers message writes until released, holding the save chain at
// a chosen point.
type gatedStore struct {
	ports.MessageStore
	ports.ProgressStore
	release chan struct{}
}

func (g *gatedStore) SaveMessage(ctx context.Context, key ports.Key, msg domain.Message) (domain.Message, error) {
	<-g.release
	return g.MessageStore.SaveMessage(ctx, key, msg)
}

func TestRestart_DiscardsQueuedSaves(t *testing.T) {
	s := sessionScript()
	mem := memory.NewStore()
	gated := &gatedStore{MessageStore: mem, ProgressStore: mem, release: make(chan struct{})}
	o := New(testKey, s, gated, gated, localoracle.New(s))
	t.Cleanup(func() {
		select {
		case <-gated.release:
		default:
			close(gated.release)
		}
		o.Close()
	})
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	_, err = o.SubmitAnswer(ctx, "ok")
	require.NoError(t, err)

	// Every write so far is still held back; the restart must keep all of
	// them out of the fresh attempt's history.
	msgs, err := o.Restart(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	close(gated.release)

	require.Eventually(t, func() bool {
		stored, err := mem.LoadMessages(ctx, testKey)
		return err == nil && len(stored) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := mem.LoadMessages(ctx, testKey)
	require.NoError(t, err)
	require.Equal(t, domain.KindGoal, domain.PayloadKindOf(stored[0].Text))
	require.Len(t, o.Messages(), 1)
}

func TestCompletion_MarksProgress(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	defer o.Close()
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	for _, answer := range []string{"ok", "ok", "sí"} {
		_, err = o.SubmitAnswer(ctx, answer)
		require.NoError(t, err)
	}

	require.True(t, o.Completed())
	require.Nil(t, o.CurrentStep())

	require.Eventually(t, func() bool {
		p, err := store.LoadProgress(ctx, testKey)
		return err == nil && p.Completed()
	}, 2*time.Second, 10*time.Millisecond)

	// A terminal session refuses further advancement.
	_, err = o.SubmitAnswer(ctx, "ещё")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClose_RejectsFurtherActions(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)

	o.Close()
	o.Close() // idempotent

	_, err = o.SubmitAnswer(ctx, "x")
	require.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = o.Restart(ctx)
	require.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestReconcile_ForeignMessageAppended(t *testing.T) {
	s := sessionScript()
	store := memory.NewStore()
	o := New(testKey, s, store, store, localoracle.New(s))
	defer o.Close()
	ctx := context.Background()

	_, err := o.Start(ctx)
	require.NoError(t, err)
	waitPersisted(t, store, 1)

	// Another device answers and advances; its writes arrive by subscription.
	foreignStep := &domain.Step{Module: domain.ModuleWords}
	_, err = store.SaveMessage(ctx, testKey, domain.Message{
		Role: domain.RoleUser, Text: "с другого устройства", Step: &domain.Step{Module: domain.ModuleGoal},
	})
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, testKey, domain.Message{
		Role: domain.RoleModel, Text: "слова", Step: foreignStep,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(o.Messages()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, &domain.Step{Module: domain.ModuleWords}, o.CurrentStep())
}
