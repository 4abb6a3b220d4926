package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// JobInspector reports on background queues and jobs.
type JobInspector interface {
	Queues() []string
	Stats(ctx context.Context, queue string) (task.QueueStats, error)
	Status(ctx context.Context, id uuid.UUID) (*task.JobStatus, error)
}

var _ JobInspector = (*task.Runner)(nil)

// JobHandler serves the /api/queues and /api/jobs routes.
type JobHandler struct {
	jobs JobInspector
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobs JobInspector) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListQueues handles GET /api/queues, returning the stats of every queue.
func (h *JobHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues := h.jobs.Queues()
	stats := make([]task.QueueStats, 0, len(queues))
	for _, q := range queues {
		s, err := h.jobs.Stats(r.Context(), q)
		if err != nil {
			respondWithServiceError(w, r, err, "Failed to get queue stats")
			return
		}
		stats = append(stats, s)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// QueueStats handles GET /api/queues/{queue}/stats.
func (h *JobHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Stats(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get queue stats")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// GetJob handles GET /api/jobs/{jobID}. Jobs owned by another user, or by
// no user, are reported as not found.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "jobID")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid jobID", err)
		return
	}

	status, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get job")
		return
	}
	if status.UserID != userID {
		respondWithServiceError(w, r, task.ErrTaskNotFound, "Failed to get job")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}
