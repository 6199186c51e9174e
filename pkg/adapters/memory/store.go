// Package memory provides in-process implementations of the persistence
// ports, used by the CLI runner and as the reference implementation in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

// Store implements ports.MessageStore and ports.ProgressStore in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages map[ports.Key][]domain.Message
	progress map[ports.Key]domain.Progress
	subs     map[ports.Key]map[int]func(domain.Message)
	nextSub  int
	now      func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		messages: make(map[ports.Key][]domain.Message),
		progress: make(map[ports.Key]domain.Progress),
		subs:     make(map[ports.Key]map[int]func(domain.Message)),
		now:      time.Now,
	}
}

// SaveMessage appends a message, assigning it an ID and creation time.
func (s *Store) SaveMessage(ctx context.Context, key ports.Key, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()

	stored := copyMessage(msg)
	if stored.ID == "" {
		stored.ID = ksuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.messages[key] = append(s.messages[key], stored)

	var fns []func(domain.Message)
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(copyMessage(stored))
	}
	return copyMessage(stored), nil
}

// LoadMessages returns the history ordered by creation time then ID.
func (s *Store) LoadMessages(ctx context.Context, key ports.Key) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]domain.Message, 0, len(s.messages[key]))
	for _, m := range s.messages[key] {
		msgs = append(msgs, copyMessage(m))
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// Subscribe registers a callback for committed messages under the key.
func (s *Store) Subscribe(ctx context.Context, key ports.Key, fn func(domain.Message)) (ports.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(domain.Message))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}, nil
}

// Reset drops the message history for a fresh attempt. Progress is kept;
// the orchestrator overwrites it on the next advancement.
func (s *Store) Reset(ctx context.Context, key ports.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, key)
	return nil
}

// UpsertProgress stores the cursor snapshot, last write wins.
func (s *Store) UpsertProgress(ctx context.Context, key ports.Key, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[key] = copyProgress(p)
	return nil
}

// LoadProgress returns the stored snapshot or domain.ErrSessionNotFound.
func (s *Store) LoadProgress(ctx context.Context, key ports.Key) (*domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	stored := copyProgress(p)
	return &stored, nil
}

// copyMessage isolates callers from store-held state.
func copyMessage(m domain.Message) domain.Message {
	out := m
	if m.Step != nil {
		step := *m.Step
		out.Step = &step
	}
	return out
}

func copyProgress(p domain.Progress) domain.Progress {
	out := p
	if p.Step != nil {
		step := *p.Step
		out.Step = &step
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
