package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	SubmitFn func(ctx context.Context, id uuid.UUID, queue, taskType string, payload any) (*Task, error)
	calls    int
	lastID   uuid.UUID
	lastType string
}

func (m *mockSubmitter) SubmitWithID(
	ctx context.Context,
	id uuid.UUID,
	queue, taskType string,
	payload any,
) (*Task, error) {
	m.calls++
	m.lastID = id
	m.lastType = taskType
	return m.SubmitFn(ctx, id, queue, taskType, payload)
}

func TestEventHandler_HandleEvent(t *testing.T) {
	t.Parallel()

	t.Run("submits with event id", func(t *testing.T) {
		t.Parallel()
		sub := &mockSubmitter{
			SubmitFn: func(ctx context.Context, id uuid.UUID, queue, taskType string, payload any) (*Task, error) {
				return New(id, queue, taskType, payload, 1)
			},
		}
		h := NewEventHandler(sub, testLogger())

		event, err := events.NewTaskRequestEvent(QueueAITask, "summarize", map[string]string{"sessionId": "s1"})
		require.NoError(t, err)

		require.NoError(t, h.HandleEvent(context.Background(), event))
		assert.Equal(t, 1, sub.calls)
		assert.Equal(t, event.ID, sub.lastID)
		assert.Equal(t, "summarize", sub.lastType)
	})

	t.Run("rejects incomplete event", func(t *testing.T) {
		t.Parallel()
		sub := &mockSubmitter{}
		h := NewEventHandler(sub, testLogger())

		err := h.HandleEvent(context.Background(), &events.TaskRequestEvent{ID: uuid.New(), Type: "x"})
		assert.ErrorIs(t, err, events.ErrInvalidEvent)
		assert.Zero(t, sub.calls)
	})

	t.Run("wraps submit error", func(t *testing.T) {
		t.Parallel()
		sub := &mockSubmitter{
			SubmitFn: func(ctx context.Context, id uuid.UUID, queue, taskType string, payload any) (*Task, error) {
				return nil, ErrQueueFull
			},
		}
		h := NewEventHandler(sub, testLogger())

		event, err := events.NewTaskRequestEvent(QueueMediaProcessing, "process", nil)
		require.NoError(t, err)

		err = h.HandleEvent(context.Background(), event)
		assert.ErrorIs(t, err, ErrQueueFull)
	})
}

func TestEventHandler_WithRunner(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	received := make(chan json.RawMessage, 1)
	runner := newTestRunner(t, store, QueuePolicy{Name: QueueAITask, Attempts: 1, Workers: 1},
		HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			received <- task.Payload
			return nil, nil
		}))
	require.NoError(t, runner.Start())
	defer runner.Stop()

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(NewEventHandler(runner, testLogger()))

	event, err := events.NewTaskRequestEvent(QueueAITask, "summarize", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	assert.JSONEq(t, `{"n":1}`, string(<-received))
	waitForStatus(t, store, event.ID, StatusCompleted)
}
