package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// AITaskPayload carries the inputs of every ai-task type; each type reads
// only its own fields.
type AITaskPayload struct {
	// summarize: either inline messages or a session to load them from.
	Messages  []*domain.Message `json:"messages,omitempty"`
	SessionID uuid.UUID         `json:"session_id"`
	UserID    uuid.UUID         `json:"user_id"`

	// extract_intent
	Message string `json:"message,omitempty"`

	// analyze_image
	ImageURL string `json:"image_url,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// SummaryResult is the result of a summarize task. ArtifactID is set when
// the summary was stored for a session.
type SummaryResult struct {
	Summary    string     `json:"summary"`
	ArtifactID *uuid.UUID `json:"artifactId,omitempty"`
}

// AITaskService runs generic AI tasks on the ai-task queue.
type AITaskService struct {
	assistant *ai.Service
	sessions  store.SessionStore
	messages  store.MessageStore
	artifacts store.ArtifactStore
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewAITaskService creates an AITaskService.
func NewAITaskService(
	assistant *ai.Service,
	sessions store.SessionStore,
	messages store.MessageStore,
	artifacts store.ArtifactStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *AITaskService {
	return &AITaskService{
		assistant: assistant,
		sessions:  sessions,
		messages:  messages,
		artifacts: artifacts,
		emitter:   emitter,
		logger:    logger.With("component", "ai_task_service"),
	}
}

// RequestSummary queues a summary of a session owned by userID and returns
// the job id.
func (s *AITaskService) RequestSummary(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error) {
	if _, err := s.sessions.GetForUser(ctx, sessionID, userID); err != nil {
		return uuid.Nil, err
	}
	jobID, err := emitTask(ctx, s.emitter, task.QueueAITask, AITaskSummarize, AITaskPayload{
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("summary queued", "job_id", jobID, "session_id", sessionID)
	return jobID, nil
}

// Handle implements task.Handler for the ai-task queue. The task type
// selects the operation.
func (s *AITaskService) Handle(ctx context.Context, t *task.Task) (any, error) {
	var payload AITaskPayload
	if err := t.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}

	var (
		result any
		err    error
	)
	switch t.Type {
	case AITaskSummarize:
		result, err = s.summarize(ctx, payload)
	case AITaskExtractIntent:
		result = s.assistant.ExtractIntent(ctx, payload.Message)
	case AITaskAnalyzeImage:
		if payload.ImageURL == "" {
			return nil, fmt.Errorf("%w: image_url is required", ErrInvalidInput)
		}
		result, err = s.assistant.AnalyzeImage(ctx, payload.ImageURL, payload.Prompt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAITask, t.Type)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "result": result}, nil
}

func (s *AITaskService) summarize(ctx context.Context, payload AITaskPayload) (*SummaryResult, error) {
	messages := payload.Messages
	var session *domain.Session
	if payload.SessionID != uuid.Nil {
		var err error
		session, err = s.sessions.GetByID(ctx, payload.SessionID)
		if err != nil {
			return nil, err
		}
		messages, err = s.messages.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session messages: %w", err)
		}
	}

	summary, err := s.assistant.SummarizeConversation(ctx, messages)
	if err != nil {
		return nil, err
	}
	res := &SummaryResult{Summary: summary}
	if session == nil {
		return res, nil
	}

	title := "Summary"
	if t := strings.TrimSpace(session.Title); t != "" {
		title = "Summary of " + t
	}
	artifact, err := domain.NewArtifact(session.UserID, session.ID, domain.ArtifactTypeSummary, title)
	if err != nil {
		return nil, err
	}
	artifact.Content = summary
	artifact.Metadata["messageCount"] = len(messages)
	artifact.Status = domain.ArtifactStatusCompleted
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("session summarized",
		"session_id", session.ID,
		"artifact_id", artifact.ID)
	res.ArtifactID = &artifact.ID
	return res, nil
}

var _ task.Handler = (*AITaskService)(nil)
