package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithJSON(rec, req, http.StatusCreated, map[string]any{"message": "ok", "count": 2})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"ok","count":2}`, rec.Body.String())
}

func TestRespondWithText(t *testing.T) {
	rec := httptest.NewRecorder()

	RespondWithText(rec, http.StatusOK, "EVENT_RECEIVED")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetTraceID(req.Context()))

	RespondWithError(rec, req, http.StatusNotFound, "Session not found")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Session not found", body.Error)
	assert.Equal(t, GetTraceID(req.Context()), body.TraceID)
}

func TestRespondWithValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	err := ValidateRequest(&testRequest{})
	require.Error(t, err)
	RespondWithValidationError(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"error":"Validation failed","details":[{"field":"phoneNumber","message":"is required"}]}`,
		rec.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "client error", status: http.StatusNotFound, wantLevel: "DEBUG"},
		{
			name:      "elevated client error",
			status:    http.StatusUnauthorized,
			opts:      []ResponseOption{WithElevatedLogLevel()},
			wantLevel: "WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _, buf := logger.NewTestLogger(t)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil).WithContext(ctx)

			RespondWithErrorAndLog(rec, req, tt.status, "Something failed", errors.New("db down"), tt.opts...)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, `{"error":"Something failed"}`, rec.Body.String())

			entries, err := buf.GetLogEntries()
			require.NoError(t, err)
			var found bool
			for _, e := range entries {
				if e["msg"] == "API error response" {
					found = true
					assert.Equal(t, tt.wantLevel, e["level"])
					assert.Equal(t, "/api/sessions", e["path"])
					assert.Equal(t, "db down", e["error"])
				}
			}
			assert.True(t, found, "error response was not logged")
		})
	}
}
