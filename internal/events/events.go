package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned when an event is missing its queue or type.
var ErrInvalidEvent = errors.New("invalid event")

// TaskRequestEvent asks for a unit of background work. Its ID becomes the
// ID of the resulting task, so callers can report it as a job id before the
// work is picked up.
type TaskRequestEvent struct {
	ID        uuid.UUID       `json:"id"`
	Queue     string          `json:"queue"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler processes task request events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter publishes task request events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}

// NewTaskRequestEvent marshals payload and stamps a fresh ID.
func NewTaskRequestEvent(queue, taskType string, payload any) (*TaskRequestEvent, error) {
	if queue == "" || taskType == "" {
		return nil, fmt.Errorf("%w: queue and type are required", ErrInvalidEvent)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &TaskRequestEvent{
		ID:        uuid.New(),
		Queue:     queue,
		Type:      taskType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
