package task

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store with per-key TTL.
// Expired entries are dropped lazily on read. Suitable for development and
// testing; production deployments use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	tasks    map[string]memoryEntry
	external map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	task      *Task  // set for task records
	taskID    string // set for reverse-index entries
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, used by tests to exercise expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory task store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks:    make(map[string]memoryEntry),
		external: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a task record and starts its TTL.
func (s *MemoryStore) Save(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.TaskID] = memoryEntry{task: t.Clone(), expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Get retrieves a task by internal id.
func (s *MemoryStore) Get(_ context.Context, taskID string) (*Task, error) {
	s.mu.RLock()
	entry, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrTaskNotFound
	}
	return entry.task.Clone(), nil
}

// Update merges a partial update into the stored record. The TTL restarts on
// every write, matching the Redis layout where each SET carries a fresh expiry.
func (s *MemoryStore) Update(_ context.Context, taskID string, upd Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[taskID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrTaskNotFound
	}

	merged := entry.task.Clone()
	if err := merged.Apply(upd); err != nil {
		return nil, err
	}
	s.tasks[taskID] = memoryEntry{task: merged, expiresAt: s.now().Add(s.ttl)}
	return merged.Clone(), nil
}

// SetExternalID registers the reverse-index entry externalID -> taskID.
func (s *MemoryStore) SetExternalID(_ context.Context, externalID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.external[externalID] = memoryEntry{taskID: taskID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// GetByExternalID resolves a provider-assigned id to its task.
func (s *MemoryStore) GetByExternalID(ctx context.Context, externalID string) (*Task, error) {
	s.mu.RLock()
	entry, ok := s.external[externalID]
	s.mu.RUnlock()
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrTaskNotFound
	}
	return s.Get(ctx, entry.taskID)
}
