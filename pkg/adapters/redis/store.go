// Package redis provides Redis-backed implementations of the persistence
// ports plus a distributed locker, for multi-instance deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/tidwall/sjson"

	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

// Store implements ports.MessageStore and ports.ProgressStore using Redis.
// Messages live in a list per attempt, progress in a plain key, and inserts
// are published on a per-attempt channel for realtime subscribers.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for a lesson attempt's keys.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "lessonloop:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) messagesKey(key ports.Key) string {
	return s.prefix + "messages:" + key.String()
}

func (s *Store) progressKey(key ports.Key) string {
	return s.prefix + "progress:" + key.String()
}

func (s *Store) channel(key ports.Key) string {
	return s.prefix + "feed:" + key.String()
}

// SaveMessage appends the message to the attempt's list, stamping the
// assigned ID and creation time into the stored JSON, and publishes it for
// subscribers.
func (s *Store) SaveMessage(ctx context.Context, key ports.Key, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = ksuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	// Stamp the assigned ID explicitly so pre-serialized copies in other
	// replicas reconcile on it.
	if data, err = sjson.SetBytes(data, "id", msg.ID); err != nil {
		return domain.Message{}, fmt.Errorf("stamp message id: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.messagesKey(key), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.messagesKey(key), s.ttl)
	}
	pipe.Publish(ctx, s.channel(key), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// LoadMessages returns the attempt's history in append order.
func (s *Store) LoadMessages(ctx context.Context, key ports.Key) ([]domain.Message, error) {
	vals, err := s.client.LRange(ctx, s.messagesKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(vals))
	for _, val := range vals {
		var msg domain.Message
		if err := json.Unmarshal([]byte(val), &msg); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Subscribe delivers messages published for the attempt until unsubscribed.
func (s *Store) Subscribe(ctx context.Context, key ports.Key, fn func(domain.Message)) (ports.Unsubscribe, error) {
	sub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		for raw := range sub.Channel() {
			var msg domain.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			fn(msg)
		}
	}()

	return func() {
		_ = sub.Close()
	}, nil
}

// Reset drops the attempt's message history.
func (s *Store) Reset(ctx context.Context, key ports.Key) error {
	return s.client.Del(ctx, s.messagesKey(key)).Err()
}

// UpsertProgress stores the snapshot, last write wins.
func (s *Store) UpsertProgress(ctx context.Context, key ports.Key, p domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.client.Set(ctx, s.progressKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// LoadProgress returns the stored snapshot or domain.ErrSessionNotFound.
func (s *Store) LoadProgress(ctx context.Context, key ports.Key) (*domain.Progress, error) {
	val, err := s.client.Get(ctx, s.progressKey(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("decode stored progress: %w", err)
	}
	return &p, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
