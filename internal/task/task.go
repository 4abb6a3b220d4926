package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	// StatusDelayed marks a task waiting for its next retry.
	StatusDelayed   Status = "delayed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State returns the job state name reported to API clients.
func (s Status) State() string {
	switch s {
	case StatusPending:
		return "waiting"
	case StatusProcessing:
		return "active"
	default:
		return string(s)
	}
}

// Errors returned by the runner and its store.
var (
	ErrQueueFull     = errors.New("task queue is full")
	ErrQueueClosed   = errors.New("task queue is closed")
	ErrUnknownQueue  = errors.New("unknown queue")
	ErrTaskNotFound  = errors.New("task not found")
	ErrRunnerStarted = errors.New("task runner already started")
)

// Task is a persisted unit of background work.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// New creates a pending task with a JSON-encoded payload.
func New(id uuid.UUID, queue, taskType string, payload any, maxAttempts int) (*Task, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	now := time.Now().UTC()
	return &Task{
		ID:          id,
		Queue:       queue,
		Type:        taskType,
		Payload:     data,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UnmarshalPayload decodes the task payload into v.
func (t *Task) UnmarshalPayload(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", t.Type, err)
	}
	return nil
}

// Owner returns the user named by the payload's "userId" or "user_id" key,
// or uuid.Nil when the payload names none.
func (t *Task) Owner() uuid.UUID {
	var p struct {
		UserID      uuid.UUID `json:"userId"`
		SnakeUserID uuid.UUID `json:"user_id"`
	}
	if len(t.Payload) == 0 || json.Unmarshal(t.Payload, &p) != nil {
		return uuid.Nil
	}
	if p.UserID != uuid.Nil {
		return p.UserID
	}
	return p.SnakeUserID
}

// JobStatus is the externally visible view of a task.
type JobStatus struct {
	ID           uuid.UUID       `json:"id"`
	Queue        string          `json:"queue"`
	Type         string          `json:"type"`
	State        string          `json:"state"`
	Attempts     int             `json:"attempts"`
	Result       json.RawMessage `json:"result,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
	// UserID is the task owner; it is never serialised.
	UserID       uuid.UUID       `json:"-"`
}

// QueueStats counts the tasks of one queue by state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Delayed   int    `json:"delayed"`
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	SaveTask(ctx context.Context, task *Task) error

	// GetTask returns ErrTaskNotFound when no task has the given ID.
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)

	// MarkProcessing records the start of an attempt.
	MarkProcessing(ctx context.Context, id uuid.UUID, attempts int) error

	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error

	// CompleteTask stores the handler result and marks the task completed.
	CompleteTask(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	GetPendingTasks(ctx context.Context) ([]*Task, error)

	GetDelayedTasks(ctx context.Context) ([]*Task, error)

	// GetProcessingTasks returns processing tasks. If olderThan is non-zero,
	// only tasks that have been processing longer than that are returned.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error)

	// CountByStatus counts the tasks of queue grouped by status.
	CountByStatus(ctx context.Context, queue string) (map[Status]int, error)

	WithTx(tx *sql.Tx) TaskStore
}
