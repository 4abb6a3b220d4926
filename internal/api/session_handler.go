package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// MaxSessionPageSize caps the limit query parameter of session listings.
const MaxSessionPageSize = 100

// BuildRequester queues repository builds.
type BuildRequester interface {
	RequestBuild(ctx context.Context, userID, sessionID uuid.UUID, spec service.ProjectSpec) (uuid.UUID, error)
}

// SummaryRequester queues session summaries.
type SummaryRequester interface {
	RequestSummary(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error)
}

// SessionHandler serves the /api/sessions routes.
type SessionHandler struct {
	sessions  service.SessionService
	builds    BuildRequester
	summaries SummaryRequester
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(
	sessions service.SessionService,
	builds BuildRequester,
	summaries SummaryRequester,
) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		builds:    builds,
		summaries: summaries,
	}
}

// List handles GET /api/sessions?limit&offset&status.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.SessionFilter{
		Status: domain.SessionStatus(q.Get("status")),
		Limit:  queryInt(q.Get("limit"), service.DefaultSessionPageSize),
		Offset: queryInt(q.Get("offset"), 0),
	}
	if filter.Limit == 0 {
		filter.Limit = service.DefaultSessionPageSize
	}
	filter.Limit = min(filter.Limit, MaxSessionPageSize)

	sessions, total, err := h.sessions.List(r.Context(), userID, filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get sessions")
		return
	}
	if sessions == nil {
		sessions = []*service.SessionWithMessages{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SessionListResponse{Total: total, Sessions: sessions})
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.sessions.Create(r.Context(), userID, service.CreateSessionParams{
		Title:       req.Title,
		Description: req.Description,
		Type:        domain.SessionType(req.Type),
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, session)
}

// Get handles GET /api/sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	detail, err := h.sessions.Get(r.Context(), userID, sessionID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// Update handles PUT /api/sessions/{sessionID}.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	var req UpdateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.sessions.Update(r.Context(), userID, sessionID, service.SessionUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.SessionStatus(req.Status),
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, session)
}

// Delete handles DELETE /api/sessions/{sessionID}. Sessions are archived,
// never removed.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	if err := h.sessions.Archive(r.Context(), userID, sessionID); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Session archived successfully"})
}

// Stats handles GET /api/sessions/{sessionID}/stats.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	stats, err := h.sessions.Stats(r.Context(), userID, sessionID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get session stats")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SessionStatsResponse{SessionID: sessionID, Stats: stats})
}

// Build handles POST /api/sessions/{sessionID}/build.
func (h *SessionHandler) Build(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	var req BuildProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	spec := service.ProjectSpec{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	}
	for _, f := range req.Files {
		spec.Files = append(spec.Files, github.File{Path: f.Path, Content: f.Content})
	}

	jobID, err := h.builds.RequestBuild(r.Context(), userID, sessionID, spec)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to queue build")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{JobID: jobID, Queue: task.QueueGitHubBuild})
}

// Summarize handles POST /api/sessions/{sessionID}/summarize.
func (h *SessionHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	jobID, err := h.summaries.RequestSummary(r.Context(), userID, sessionID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to queue summary")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{JobID: jobID, Queue: task.QueueAITask})
}

// queryInt parses a non-negative integer query value, returning def when
// it is absent or invalid.
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
