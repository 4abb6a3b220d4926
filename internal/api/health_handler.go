package api

import (
	"net/http"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
)

// Service identity reported by the root endpoint.
const (
	ServiceName    = "WhatsApp AI Assistant"
	ServiceVersion = "1.0.0"
)

// HealthHandler serves the root and health endpoints and the JSON 404/405
// responses.
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler; uptime is measured from now.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now(), now: time.Now}
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"name":    ServiceName,
		"version": ServiceVersion,
		"status":  "running",
	})
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(h.started).Seconds(),
	})
}

// NotFound answers unknown routes.
func (h *HealthHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusNotFound, shared.ErrorResponse{
		Error:   "Not Found",
		Message: "The requested resource was not found",
	})
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *HealthHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusMethodNotAllowed, shared.ErrorResponse{
		Error:   "Method Not Allowed",
		Message: "The requested method is not supported for this resource",
	})
}
