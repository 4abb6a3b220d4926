package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAITaskService(f *fixture) *service.AITaskService {
	return service.NewAITaskService(f.assistant(), f.sessions, f.messages, f.artifacts, f.emitter, testLogger())
}

func aiJob(t *testing.T, taskType string, payload service.AITaskPayload) *task.Task {
	t.Helper()
	job, err := task.New(uuid.New(), task.QueueAITask, taskType, payload, 2)
	require.NoError(t, err)
	return job
}

func resultOf(t *testing.T, out any) any {
	t.Helper()
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["success"])
	return m["result"]
}

func TestAITaskService_Summarize(t *testing.T) {
	t.Run("inline messages", func(t *testing.T) {
		f := newFixture()
		f.provider.Reply = "They discussed lunch."
		svc := newAITaskService(f)

		out, err := svc.Handle(context.Background(), aiJob(t, service.AITaskSummarize, service.AITaskPayload{
			Messages: []*domain.Message{
				{Direction: domain.DirectionInbound, Content: "lunch?"},
				{Direction: domain.DirectionOutbound, Content: "sure"},
			},
		}))
		require.NoError(t, err)

		res, ok := resultOf(t, out).(*service.SummaryResult)
		require.True(t, ok)
		assert.Equal(t, "They discussed lunch.", res.Summary)
		assert.Nil(t, res.ArtifactID)
		assert.Empty(t, f.artifacts.Artifacts)
	})

	t.Run("session summary is stored as an artifact", func(t *testing.T) {
		f := newFixture()
		f.provider.Reply = "A short recap."
		svc := newAITaskService(f)
		userID := uuid.New()
		s := seedSession(t, f, userID, time.Now())
		seedMessage(t, f, s, domain.DirectionInbound, "build me a todo app")
		seedMessage(t, f, s, domain.DirectionOutbound, "on it")

		out, err := svc.Handle(context.Background(), aiJob(t, service.AITaskSummarize, service.AITaskPayload{
			SessionID: s.ID,
			UserID:    userID,
		}))
		require.NoError(t, err)

		res := resultOf(t, out).(*service.SummaryResult)
		require.NotNil(t, res.ArtifactID)
		require.Len(t, f.artifacts.Artifacts, 1)
		artifact := f.artifacts.Artifacts[0]
		assert.Equal(t, *res.ArtifactID, artifact.ID)
		assert.Equal(t, domain.ArtifactTypeSummary, artifact.Type)
		assert.Equal(t, domain.ArtifactStatusCompleted, artifact.Status)
		assert.Equal(t, "Summary of seeded", artifact.Title)
		assert.Equal(t, "A short recap.", artifact.Content)
		assert.Equal(t, 2, artifact.Metadata["messageCount"])

		require.Len(t, f.provider.Requests, 1)
		transcript := f.provider.Requests[0][len(f.provider.Requests[0])-1].Content
		assert.Contains(t, transcript, "build me a todo app")
	})

	t.Run("missing session", func(t *testing.T) {
		f := newFixture()
		svc := newAITaskService(f)
		_, err := svc.Handle(context.Background(), aiJob(t, service.AITaskSummarize, service.AITaskPayload{
			SessionID: uuid.New(),
		}))
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestAITaskService_ExtractIntent(t *testing.T) {
	f := newFixture()
	f.provider.Reply = `{"intent":"build_project","entities":["todo app"],"confidence":0.9}`
	svc := newAITaskService(f)

	out, err := svc.Handle(context.Background(), aiJob(t, service.AITaskExtractIntent, service.AITaskPayload{
		Message: "make me a todo app",
	}))
	require.NoError(t, err)

	intent, ok := resultOf(t, out).(ai.Intent)
	require.True(t, ok)
	assert.Equal(t, "build_project", intent.Intent)
	assert.Equal(t, []any{"todo app"}, intent.Entities)
	assert.InDelta(t, 0.9, intent.Confidence, 0.0001)
}

func TestAITaskService_AnalyzeImage(t *testing.T) {
	f := newFixture()
	f.provider.Description = "A cat on a keyboard"
	svc := newAITaskService(f)

	out, err := svc.Handle(context.Background(), aiJob(t, service.AITaskAnalyzeImage, service.AITaskPayload{
		ImageURL: "https://example.com/cat.png",
		Prompt:   "What is this?",
	}))
	require.NoError(t, err)
	assert.Equal(t, "A cat on a keyboard", resultOf(t, out))
	assert.Equal(t, []string{"https://example.com/cat.png"}, f.provider.Images)

	_, err = svc.Handle(context.Background(), aiJob(t, service.AITaskAnalyzeImage, service.AITaskPayload{}))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestAITaskService_UnknownType(t *testing.T) {
	svc := newAITaskService(newFixture())
	_, err := svc.Handle(context.Background(), aiJob(t, "translate", service.AITaskPayload{}))
	assert.ErrorIs(t, err, service.ErrUnknownAITask)
}

func TestAITaskService_RequestSummary(t *testing.T) {
	f := newFixture()
	svc := newAITaskService(f)
	userID := uuid.New()
	s := seedSession(t, f, userID, time.Now())

	jobID, err := svc.RequestSummary(context.Background(), userID, s.ID)
	require.NoError(t, err)

	emitted := f.emitter.emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, jobID, emitted[0].ID)
	assert.Equal(t, task.QueueAITask, emitted[0].Queue)
	assert.Equal(t, service.AITaskSummarize, emitted[0].Type)

	var payload service.AITaskPayload
	require.NoError(t, emitted[0].UnmarshalPayload(&payload))
	assert.Equal(t, s.ID, payload.SessionID)
	assert.Equal(t, userID, payload.UserID)

	_, err = svc.RequestSummary(context.Background(), uuid.New(), s.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}
