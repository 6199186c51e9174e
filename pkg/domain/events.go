package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventAdvance      EventType = "advance"
	EventRepair       EventType = "repair"
	EventPersistRetry EventType = "persist_retry"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// AdvanceEvent is emitted after every engine advancement.
type AdvanceEvent struct {
	EventBase
	Module   Module `json:"module"`
	Index    int    `json:"index"`
	SubIndex int    `json:"sub_index"`
	Correct  bool   `json:"correct"`
	Emitted  int    `json:"emitted"`
	Terminal bool   `json:"terminal"`
}

// RepairEvent is emitted when history repair changed the persisted prefix.
type RepairEvent struct {
	EventBase
	Dropped int      `json:"dropped"`
	Reasons []string `json:"reasons,omitempty"`
}

// PersistRetryEvent is emitted when a message save is retried after a failure.
type PersistRetryEvent struct {
	EventBase
	Attempt int    `json:"attempt"`
	Err     string `json:"err"`
}

// LifecycleHooks defines callbacks for session observability.
type LifecycleHooks struct {
	OnAdvance      func(context.Context, *AdvanceEvent)
	OnRepair       func(context.Context, *RepairEvent)
	OnPersistRetry func(context.Context, *PersistRetryEvent)
}
