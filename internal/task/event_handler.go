package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
)

// Submitter places tasks on a named queue.
type Submitter interface {
	SubmitWithID(ctx context.Context, id uuid.UUID, queue, taskType string, payload any) (*Task, error)
}

// EventHandler turns task request events into queued tasks. The event ID
// is reused as the task ID.
type EventHandler struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewEventHandler creates an EventHandler submitting to s.
func NewEventHandler(s Submitter, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		submitter: s,
		logger:    logger.With("component", "task_event_handler"),
	}
}

// HandleEvent submits the event payload to the event's queue.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event == nil || event.Queue == "" || event.Type == "" {
		return fmt.Errorf("%w: queue and type are required", events.ErrInvalidEvent)
	}

	t, err := h.submitter.SubmitWithID(ctx, event.ID, event.Queue, event.Type, event.Payload)
	if err != nil {
		h.logger.Error("failed to submit task",
			"event_id", event.ID,
			"queue", event.Queue,
			"task_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task submitted from event",
		"task_id", t.ID,
		"queue", t.Queue,
		"task_type", t.Type)
	return nil
}

var _ events.EventHandler = (*EventHandler)(nil)
