package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
)

// RateLimit allows limit requests per client IP in each window. Excess
// requests get a 429 JSON error.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.FromContextOrDefault(r.Context(), slog.Default()).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"method", r.Method)
			shared.RespondWithJSON(w, r, http.StatusTooManyRequests, shared.ErrorResponse{
				Error:   "Too many requests",
				Message: "Please try again later.",
				TraceID: shared.GetTraceID(r.Context()),
			})
		}),
	)
}
