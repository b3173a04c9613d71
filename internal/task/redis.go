package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// Key families used in Redis. The prefix keeps the keyspace shareable with
// other applications on the same instance.
const (
	taskKeyFormat     = "mediagen:task:%s"
	externalKeyFormat = "mediagen:task:ext:%s"
)

// RedisStore persists task records as JSON values with a TTL, plus a string
// reverse-index entry per external id under the same TTL. Every write resets
// the expiry, so an active task stays observable for ttl past its last
// mutation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed task store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func taskKey(taskID string) string {
	return fmt.Sprintf(taskKeyFormat, taskID)
}

func externalKey(externalID string) string {
	return fmt.Sprintf(externalKeyFormat, externalID)
}

// Save persists a task record and starts its TTL.
func (s *RedisStore) Save(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("task: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(t.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("task: save record: %w", err)
	}
	return nil
}

// Get retrieves a task by internal id.
func (s *RedisStore) Get(ctx context.Context, taskID string) (*Task, error) {
	data, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task: get record: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("task: unmarshal record: %w", err)
	}
	return &t, nil
}

// Update reads the current record, merges the partial update, and writes the
// result back with a fresh TTL. There is no transaction around the
// read-merge-write; see Store for the accepted last-writer-wins model.
func (s *RedisStore) Update(ctx context.Context, taskID string, upd Update) (*Task, error) {
	t, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := t.Apply(upd); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetExternalID registers the reverse-index entry externalID -> taskID.
func (s *RedisStore) SetExternalID(ctx context.Context, externalID, taskID string) error {
	if err := s.client.Set(ctx, externalKey(externalID), taskID, s.ttl).Err(); err != nil {
		return fmt.Errorf("task: set external id: %w", err)
	}
	return nil
}

// GetByExternalID resolves a provider-assigned id to its task. The record and
// the index entry expire independently; a dangling index entry resolves to
// ErrTaskNotFound like any other miss.
func (s *RedisStore) GetByExternalID(ctx context.Context, externalID string) (*Task, error) {
	taskID, err := s.client.Get(ctx, externalKey(externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task: resolve external id: %w", err)
	}
	return s.Get(ctx, taskID)
}
