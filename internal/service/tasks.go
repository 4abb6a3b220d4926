package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
)

// Task types placed on the background queues.
const (
	TaskProcessMedia = "process_media"
	TaskBuildProject = "build_project"

	AITaskSummarize     = "summarize"
	AITaskExtractIntent = "extract_intent"
	AITaskAnalyzeImage  = "analyze_image"
)

// emitTask publishes a task request and returns its job id.
func emitTask(ctx context.Context, emitter events.EventEmitter, queue, taskType string, payload any) (uuid.UUID, error) {
	event, err := events.NewTaskRequestEvent(queue, taskType, payload)
	if err != nil {
		return uuid.Nil, err
	}
	if err := emitter.EmitEvent(ctx, event); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	return event.ID, nil
}
