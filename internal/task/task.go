// Package task provides the generation task record, its state machine, and
// the store and orchestration service built around them. A task tracks one
// media-generation request from submission to terminal outcome; completion is
// delivered out-of-band by a provider webhook.
package task

import (
	"errors"
	"time"
)

// Status represents the current state of a generation task.
type Status string

const (
	// StatusPending indicates the task record exists but no provider has been contacted.
	StatusPending Status = "pending"
	// StatusProcessing indicates the task was handed to a provider and a callback is awaited.
	StatusProcessing Status = "processing"
	// StatusSucceeded indicates the provider delivered a result.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates submission or generation failed.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrInvalidTransition is returned when a status update would move a task
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("task: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusSucceeded, StatusFailed},
	StatusSucceeded:  {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is the record tracked for one generation request.
type Task struct {
	// TaskID is the internally generated identifier; primary key.
	TaskID string `json:"taskId"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Provider names the adapter that owns this task; immutable after creation.
	Provider string `json:"provider"`
	// ModelID is the provider-specific model identifier; immutable.
	ModelID string `json:"modelId"`
	// ExternalID is the provider-assigned correlation id. Empty until the
	// submission call returns; reverse-lookup key for webhook resolution.
	ExternalID string `json:"externalId"`
	// ResultURL is set on transition to succeeded.
	ResultURL string `json:"resultUrl,omitempty"`
	// Error is set on transition to failed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a pending task for the given provider and model.
func New(taskID, providerName, modelID string) *Task {
	now := time.Now().UTC()
	return &Task{
		TaskID:    taskID,
		Status:    StatusPending,
		Provider:  providerName,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update is a partial mutation of a task record. Zero-valued fields are
// preserved on merge, so callers only name what they change.
type Update struct {
	Status     Status
	ExternalID string
	ResultURL  string
	Error      string
}

// Apply merges an update into the task in place. The status transition is
// validated here and nowhere else, so every writer (orchestrator and webhook
// handlers alike) goes through the same forward-only check. UpdatedAt is
// refreshed on every successful merge.
func (t *Task) Apply(upd Update) error {
	if upd.Status != "" && upd.Status != t.Status {
		if !canTransition(t.Status, upd.Status) {
			return ErrInvalidTransition
		}
		t.Status = upd.Status
	}
	if upd.ExternalID != "" {
		t.ExternalID = upd.ExternalID
	}
	if upd.ResultURL != "" {
		t.ResultURL = upd.ResultURL
	}
	if upd.Error != "" {
		t.Error = upd.Error
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a copy of the task for safe reads.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
