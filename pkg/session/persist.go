package session

import (
	"context"
	"time"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// saveJob is one unit of the serialized persistence chain: a message append,
// a progress upsert, or a history reset (queued by Restart so it lands after
// every write of the abandoned attempt).
type saveJob struct {
	epoch    uint64
	msg      domain.Message
	progress *domain.Progress
	reset    bool
}

// enqueue hands a job to the save worker. The send is non-blocking under the
// state mutex: if the queue is ever full the job is dropped with a log line,
// since the in-memory session state stays authoritative either way.
func (o *Orchestrator) enqueue(job saveJob) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.jobs <- job:
		return true
	default:
		o.logger.Error("save queue full, dropping write", "session", o.key.String())
		return false
	}
}

// saveWorker serializes all persistence for the attempt: each save settles
// (or exhausts its retries) before the next one is issued, so the persisted
// message list can never reorder.
func (o *Orchestrator) saveWorker() {
	defer close(o.done)
	ctx := context.Background()

	for job := range o.jobs {
		switch {
		case job.reset:
			o.persistReset(ctx)
		case job.progress != nil:
			o.persistProgress(ctx, job)
		default:
			o.persistMessage(ctx, job)
		}
	}
}

// staleEpoch reports whether a restart superseded the job after it was
// queued. Stale writes are dropped so they cannot land in the fresh
// attempt's history.
func (o *Orchestrator) staleEpoch(epoch uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch != epoch
}

func (o *Orchestrator) persistMessage(ctx context.Context, job saveJob) {
	backoff := o.saveBackoff
	for attempt := 1; ; attempt++ {
		if o.staleEpoch(job.epoch) {
			return
		}
		saved, err := o.store.SaveMessage(ctx, o.key, job.msg)
		if err == nil {
			o.attach(job.epoch, saved)
			return
		}

		o.logger.Warn("message save failed",
			"session", o.key.String(), "attempt", attempt, "err", err)
		if o.metrics != nil {
			o.metrics.SaveRetries.Inc()
		}
		if o.hooks.OnPersistRetry != nil {
			o.hooks.OnPersistRetry(ctx, &domain.PersistRetryEvent{
				EventBase: eventBase(domain.EventPersistRetry, o.key),
				Attempt:   attempt,
				Err:       err.Error(),
			})
		}

		if attempt >= o.saveAttempts {
			o.logger.Error("giving up on message save", "session", o.key.String())
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

func (o *Orchestrator) persistProgress(ctx context.Context, job saveJob) {
	backoff := o.saveBackoff
	for attempt := 1; ; attempt++ {
		if o.staleEpoch(job.epoch) {
			return
		}
		err := o.progress.UpsertProgress(ctx, o.key, *job.progress)
		if err == nil {
			return
		}
		o.logger.Warn("progress save failed",
			"session", o.key.String(), "attempt", attempt, "err", err)
		if attempt >= o.saveAttempts {
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// persistReset wipes the stored history for a restart. Running it on the
// save chain guarantees it follows every write of the abandoned attempt.
func (o *Orchestrator) persistReset(ctx context.Context) {
	defer func() {
		o.mu.Lock()
		o.resetting--
		o.mu.Unlock()
	}()

	backoff := o.saveBackoff
	for attempt := 1; ; attempt++ {
		err := o.store.Reset(ctx, o.key)
		if err == nil {
			return
		}
		o.logger.Warn("history reset failed",
			"session", o.key.String(), "attempt", attempt, "err", err)
		if attempt >= o.saveAttempts {
			o.logger.Error("giving up on history reset", "session", o.key.String())
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// attach merges the store's confirmation into the optimistic entry, matched
// by role and text among unconfirmed messages. Stale epochs are discarded.
func (o *Orchestrator) attach(epoch uint64, saved domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.epoch != epoch {
		return
	}
	for i := range o.live {
		if o.live[i].ID == saved.ID {
			return // already reconciled via subscription
		}
	}
	for i := range o.live {
		if o.live[i].ID == "" && o.live[i].Role == saved.Role && o.live[i].Text == saved.Text {
			o.live[i].ID = saved.ID
			o.live[i].CreatedAt = saved.CreatedAt
			return
		}
	}
}

// reconcile folds a subscription push (our own confirmations, or another
// device's inserts) into the live array. Pushes arriving while a restart's
// reset is still queued belong to the abandoned attempt and are ignored.
func (o *Orchestrator) reconcile(msg domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || msg.ID == "" || o.resetting > 0 {
		return
	}
	for i := range o.live {
		if o.live[i].ID == msg.ID {
			return
		}
	}
	for i := range o.live {
		if o.live[i].ID == "" && o.live[i].Role == msg.Role && o.live[i].Text == msg.Text {
			o.live[i].ID = msg.ID
			o.live[i].CreatedAt = msg.CreatedAt
			return
		}
	}
	// Unknown message from a concurrent session on another device.
	o.live = append(o.live, msg)
	if msg.Role == domain.RoleModel && msg.Step != nil {
		step := *msg.Step
		o.current = &step
	}
}
