package ports

import (
	"context"

	"github.com/lessonloop/lessonloop/pkg/domain"
)

// Key identifies one lesson attempt: progress and history are stored
// per (user, lesson).
type Key struct {
	UserID   string
	LessonID string
}

func (k Key) String() string {
	return k.UserID + ":" + k.LessonID
}

// Unsubscribe stops a message subscription.
type Unsubscribe func()

// MessageStore persists the chat history of a lesson attempt.
//
// SaveMessage is append-only and returns the stored copy with its assigned ID
// and creation time. LoadMessages returns history ordered by creation time
// then ID. Subscribe delivers inserts and updates as they are committed, for
// multi-device reconciliation. Reset drops history for a fresh attempt.
type MessageStore interface {
	SaveMessage(ctx context.Context, key Key, msg domain.Message) (domain.Message, error)
	LoadMessages(ctx context.Context, key Key) ([]domain.Message, error)
	Subscribe(ctx context.Context, key Key, fn func(domain.Message)) (Unsubscribe, error)
	Reset(ctx context.Context, key Key) error
}

// ProgressStore persists the per-attempt cursor snapshot, last write wins.
// LoadProgress returns domain.ErrSessionNotFound when no snapshot exists.
type ProgressStore interface {
	UpsertProgress(ctx context.Context, key Key, p domain.Progress) error
	LoadProgress(ctx context.Context, key Key) (*domain.Progress, error)
}
