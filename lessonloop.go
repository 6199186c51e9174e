package lessonloop

import (
	"log/slog"

	"github.com/lessonloop/lessonloop/internal/engine"
	"github.com/lessonloop/lessonloop/internal/logging"
	"github.com/lessonloop/lessonloop/internal/repair"
	"github.com/lessonloop/lessonloop/pkg/adapters/localoracle"
	"github.com/lessonloop/lessonloop/pkg/adapters/memory"
	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/observability"
	"github.com/lessonloop/lessonloop/pkg/ports"
	"github.com/lessonloop/lessonloop/pkg/session"
)

// Engine is the high-level entry point for the lessonloop library. It binds
// one lesson script to the progression engine, history repair and session
// construction.
type Engine struct {
	script   *domain.Script
	store    ports.MessageStore
	progress ports.ProgressStore
	oracle   ports.Oracle
	locker   ports.DistributedLocker
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	metrics  *observability.Metrics
	uiLang   string
}

// Option configures the Engine.
type Option func(*Engine)

// WithStore injects the message store. Defaults to an in-memory store.
func WithStore(store ports.MessageStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithProgressStore injects the progress store. Defaults to the same
// in-memory store as messages.
func WithProgressStore(store ports.ProgressStore) Option {
	return func(e *Engine) { e.progress = store }
}

// WithOracle injects the answer-validation oracle.
func WithOracle(oracle ports.Oracle) Option {
	return func(e *Engine) { e.oracle = oracle }
}

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithUILang sets the learner-facing language hint passed to the oracle.
func WithUILang(lang string) Option {
	return func(e *Engine) { e.uiLang = lang }
}

// New creates an Engine for a normalized script.
func New(script *domain.Script, opts ...Option) *Engine {
	e := &Engine{
		script: script,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil || e.progress == nil {
		mem := memory.NewStore()
		if e.store == nil {
			e.store = mem
		}
		if e.progress == nil {
			e.progress = mem
		}
	}
	return e
}

// Script returns the bound lesson script.
func (e *Engine) Script() *domain.Script {
	return e.script
}

// Store returns the message store, for callers that subscribe to the raw
// message feed directly.
func (e *Engine) Store() ports.MessageStore {
	return e.store
}

// CreateInitial emits the lesson goal as the first message of an attempt.
func (e *Engine) CreateInitial() domain.Batch {
	return engine.CreateInitial(e.script)
}

// Advance computes the next message batch for one learner action. Pure and
// deterministic; see internal/engine for the state machine semantics.
func (e *Engine) Advance(cur domain.Step, out domain.Outcome) domain.Batch {
	return engine.Advance(e.script, cur, out)
}

// Repair reconciles a persisted message history against the script,
// truncating to the longest valid prefix and recomputing the cursor.
func (e *Engine) Repair(msgs []domain.Message, progressStep *domain.Step) repair.Result {
	return repair.Repair(e.script, msgs, progressStep)
}

// Session builds a stateful orchestrator for one (user, lesson) attempt,
// wired to the Engine's stores, oracle and observability.
func (e *Engine) Session(key ports.Key) *session.Orchestrator {
	opts := []session.Option{
		session.WithLogger(e.logger),
		session.WithHooks(e.hooks),
		session.WithUILang(e.uiLang),
	}
	if e.metrics != nil {
		opts = append(opts, session.WithMetrics(e.metrics))
	}
	if e.locker != nil {
		opts = append(opts, session.WithLocker(e.locker))
	}
	oracle := e.oracle
	if oracle == nil {
		oracle = localoracle.New(e.script)
	}
	return session.New(key, e.script, e.store, e.progress, oracle, opts...)
}
