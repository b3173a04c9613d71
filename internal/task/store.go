package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is returned when a task cannot be found by id. Records
// expire passively after their TTL, so not-found covers both "never existed"
// and "expired". Callers must not confuse it with a failed task.
var ErrTaskNotFound = errors.New("task not found")

// Store defines task persistence with a bounded lifetime per record.
// Implementations hold two key families: the task record keyed by internal id,
// and a reverse-index entry mapping a provider's external id back to the
// internal id. Both share one TTL.
//
// The store provides no cross-key transactions and no locking; Update performs
// a read-merge-write through Task.Apply so the merge semantics live in one
// place. Last-writer-wins on the record is accepted; per task there is
// normally at most one in-flight submit plus one later webhook.
type Store interface {
	// Save persists a task record, starting (or restarting) its TTL.
	Save(ctx context.Context, t *Task) error

	// Get retrieves a task by internal id.
	// Returns ErrTaskNotFound if the record does not exist or has expired.
	Get(ctx context.Context, taskID string) (*Task, error)

	// Update reads the current record, merges the partial update via
	// Task.Apply, and writes the result back. Returns the merged record.
	// Returns ErrTaskNotFound if the record is absent and ErrInvalidTransition
	// if the status change is not allowed.
	Update(ctx context.Context, taskID string, upd Update) (*Task, error)

	// SetExternalID registers the reverse-index entry externalID -> taskID.
	SetExternalID(ctx context.Context, externalID, taskID string) error

	// GetByExternalID resolves a provider-assigned id to its task.
	// Returns ErrTaskNotFound if either the index entry or the record is gone.
	GetByExternalID(ctx context.Context, externalID string) (*Task, error)
}
