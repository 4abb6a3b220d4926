package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/mocks"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVerifyToken = "verify-me"
	testFrontendURL = "http://localhost:3001"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:        3000,
			LogLevel:    "debug",
			Environment: "test",
			FrontendURL: testFrontendURL,
		},
		Database: config.DatabaseConfig{URL: "postgres://localhost/test", MaxOpenConns: 1},
		Auth: config.AuthConfig{
			JWTSecret:            "0123456789abcdef0123456789abcdef",
			TokenLifetime:        time.Hour,
			RefreshTokenLifetime: 24 * time.Hour,
			BCryptCost:           4,
		},
		WhatsApp: config.WhatsAppConfig{
			VerifyToken: testVerifyToken,
			APIURL:      "https://graph.facebook.com",
			APIVersion:  "v18.0",
		},
		AI: config.AIConfig{Provider: "openai", OpenAIAPIKey: "sk-test"},
		Task: config.TaskConfig{
			QueueSize:                     10,
			MediaWorkers:                  1,
			GitHubWorkers:                 1,
			AIWorkers:                     3,
			StuckTaskAgeMinutes:           30,
			StuckTaskCheckIntervalMinutes: 5,
		},
		RateLimit: config.RateLimitConfig{
			APIRequests:     100,
			APIWindow:       time.Minute,
			AuthRequests:    100,
			AuthWindow:      time.Minute,
			WebhookRequests: 100,
			WebhookWindow:   time.Minute,
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, users ...*domain.User) *application {
	t.Helper()
	_, log, _ := logger.NewTestLogger(t)

	stores := appStores{
		users:     mocks.NewMockUserStore(users...),
		sessions:  mocks.NewMockSessionStore(),
		messages:  mocks.NewMockMessageStore(),
		media:     mocks.NewMockMediaStore(),
		artifacts: mocks.NewMockArtifactStore(),
		tasks:     task.NewMockTaskStore(),
	}
	clients := appClients{
		whatsapp: &mocks.MockWhatsApp{},
		storage:  mocks.NewMockMediaStorage(),
		ocr:      &mocks.MockTextExtractor{},
		repos:    &mocks.MockRepositoryHost{},
		provider: &mocks.MockAIProvider{Reply: "hello"},
	}

	app, err := wireApplication(cfg, log, nil, stores, clients)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func serve(app *application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.setupRouter().ServeHTTP(rec, req)
	return rec
}

func TestWireApplication_RegistersQueues(t *testing.T) {
	app := newTestApp(t, testConfig())

	assert.Equal(t,
		[]string{task.QueueAITask, task.QueueGitHubBuild, task.QueueMediaProcessing},
		app.taskRunner.Queues())
}

func TestWireApplication_InvalidJWTSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	_, log, _ := logger.NewTestLogger(t)

	_, err := wireApplication(cfg, log, nil, appStores{tasks: task.NewMockTaskStore()}, appClients{})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, log, _ := logger.NewTestLogger(t)

	t.Run("openai", func(t *testing.T) {
		p, err := newProvider(context.Background(), config.AIConfig{Provider: "openai", OpenAIAPIKey: "k"}, log)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("gemini without key", func(t *testing.T) {
		_, err := newProvider(context.Background(), config.AIConfig{Provider: "gemini"}, log)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := newProvider(context.Background(), config.AIConfig{Provider: "anthropic"}, log)
		assert.ErrorContains(t, err, "unsupported ai provider")
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	app := newTestApp(t, testConfig())

	t.Run("root", func(t *testing.T) {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "WhatsApp AI Assistant", body["name"])
		assert.Equal(t, "running", body["status"])
	})

	t.Run("health", func(t *testing.T) {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Not Found")
	})

	t.Run("unknown method", func(t *testing.T) {
		rec := serve(app, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("webhook verification", func(t *testing.T) {
		target := "/webhook?hub.mode=subscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1158201444"
		rec := serve(app, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1158201444", rec.Body.String())
	})

	t.Run("webhook verification with wrong token", func(t *testing.T) {
		target := "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1"
		rec := serve(app, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	user, err := domain.NewUser("15551234567")
	require.NoError(t, err)
	app := newTestApp(t, testConfig(), user)

	t.Run("missing token", func(t *testing.T) {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "No token provided")
	})

	t.Run("token for unknown user", func(t *testing.T) {
		token, err := app.jwtService.GenerateToken(context.Background(), uuid.New())
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := serve(app, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("queue stats", func(t *testing.T) {
		token, err := app.jwtService.GenerateToken(context.Background(), user.ID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := serve(app, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats []task.QueueStats
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
		require.Len(t, stats, 3)
		assert.Equal(t, task.QueueAITask, stats[0].Queue)
	})

	t.Run("unknown queue", func(t *testing.T) {
		token, err := app.jwtService.GenerateToken(context.Background(), user.ID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/queues/email/stats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := serve(app, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_AuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthRequests = 2
	app := newTestApp(t, cfg)
	router := app.setupRouter()

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"phoneNumber":"15550000000"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.NotEqual(t, http.StatusTooManyRequests, login())
	assert.NotEqual(t, http.StatusTooManyRequests, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	// Other route groups keep their own budget.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	app := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", testFrontendURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(app, req)

	assert.Equal(t, testFrontendURL, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
