package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/api"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/gemini"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/ocr"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/openai"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/postgres"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/storage"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/service/auth"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// outboundTimeout bounds calls to the WhatsApp, OCR and GitHub APIs.
const outboundTimeout = 30 * time.Second

// appStores groups the persistence layer.
type appStores struct {
	users     store.UserStore
	sessions  store.SessionStore
	messages  store.MessageStore
	media     store.MediaStore
	artifacts store.ArtifactStore
	tasks     task.TaskStore
}

// appClients groups the external integrations.
type appClients struct {
	whatsapp service.WhatsAppClient
	storage  service.MediaStorage
	ocr      service.TextExtractor
	repos    service.RepositoryHost
	provider ai.Provider
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	stores appStores

	jwtService auth.JWTService
	assistant  *ai.Service
	emitter    *events.InMemoryEventEmitter
	taskRunner *task.Runner

	userService         service.UserService
	sessionService      service.SessionService
	mediaService        *service.MediaServiceImpl
	projectService      *service.ProjectServiceImpl
	aiTaskService       *service.AITaskService
	messagingService    *service.MessagingService
	conversationService *service.ConversationService

	webhookHandler *api.WebhookHandler
}

// newApplication builds the production dependency graph on top of db.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	clients, err := newClients(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return wireApplication(cfg, logger, db, postgresStores(db, logger), clients)
}

func postgresStores(db *sql.DB, logger *slog.Logger) appStores {
	return appStores{
		users:     postgres.NewPostgresUserStore(db, logger),
		sessions:  postgres.NewPostgresSessionStore(db, logger),
		messages:  postgres.NewPostgresMessageStore(db, logger),
		media:     postgres.NewPostgresMediaStore(db, logger),
		artifacts: postgres.NewPostgresArtifactStore(db, logger),
		tasks:     postgres.NewPostgresTaskStore(db, logger),
	}
}

// newClients creates the external API clients. The completion provider is
// chosen by cfg.AI.Provider.
func newClients(ctx context.Context, cfg *config.Config, logger *slog.Logger) (appClients, error) {
	httpClient := &http.Client{Timeout: outboundTimeout}

	local, err := storage.NewLocal(cfg.Storage, logger)
	if err != nil {
		return appClients{}, fmt.Errorf("failed to create media storage: %w", err)
	}

	repos, err := github.NewClient(cfg.GitHub, logger, httpClient)
	if err != nil {
		return appClients{}, fmt.Errorf("failed to create github client: %w", err)
	}

	provider, err := newProvider(ctx, cfg.AI, logger)
	if err != nil {
		return appClients{}, err
	}

	return appClients{
		whatsapp: whatsapp.NewClient(cfg.WhatsApp, logger, whatsapp.WithHTTPClient(httpClient)),
		storage:  local,
		ocr:      ocr.NewClient(cfg.OCR, logger, httpClient),
		repos:    repos,
		provider: provider,
	}, nil
}

func newProvider(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (ai.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	case "openai":
		// No client timeout: completions are bounded by the caller's context.
		return openai.NewClient(cfg, logger, nil), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

// wireApplication assembles services, the task runner and the event
// plumbing from already constructed stores and clients. db may be nil in
// tests; transactional operations then fail.
func wireApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	stores appStores,
	clients appClients,
) (*application, error) {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt service: %w", err)
	}

	var tx store.TxBeginner
	if db != nil {
		tx = db
	}

	app := &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		stores:     stores,
		jwtService: jwtService,
		assistant:  ai.NewService(clients.provider, logger),
		emitter:    events.NewInMemoryEventEmitter(logger),
	}

	app.userService = service.NewUserService(stores.users, tx, cfg.Auth.BCryptCost, logger)
	app.sessionService = service.NewSessionService(stores.sessions, stores.messages, stores.media,
		stores.artifacts, tx, logger)
	app.mediaService = service.NewMediaService(stores.media, clients.whatsapp, clients.storage, clients.ocr,
		app.assistant, app.emitter, logger)
	app.projectService = service.NewProjectService(stores.sessions, stores.artifacts, clients.repos,
		app.emitter, logger)
	app.aiTaskService = service.NewAITaskService(app.assistant, stores.sessions, stores.messages,
		stores.artifacts, app.emitter, logger)
	app.messagingService = service.NewMessagingService(clients.whatsapp, app.sessionService, stores.messages, logger)
	app.conversationService = service.NewConversationService(app.userService, app.sessionService,
		stores.messages, app.mediaService, clients.whatsapp, app.assistant, logger)

	runner, err := setupTaskRunner(app)
	if err != nil {
		return nil, err
	}
	app.taskRunner = runner
	app.emitter.RegisterHandler(task.NewEventHandler(runner, logger))

	app.webhookHandler = api.NewWebhookHandler(app.conversationService, cfg.WhatsApp.VerifyToken,
		cfg.WhatsApp.AppSecret, logger)

	return app, nil
}

// setupTaskRunner registers one queue per background concern. Worker
// counts come from configuration; attempts, backoff and timeouts from the
// default policies.
func setupTaskRunner(app *application) (*task.Runner, error) {
	cfg := app.config.Task
	runner := task.NewRunner(app.stores.tasks, task.RunnerConfig{
		QueueSize:              cfg.QueueSize,
		StuckTaskAge:           time.Duration(cfg.StuckTaskAgeMinutes) * time.Minute,
		StuckTaskCheckInterval: time.Duration(cfg.StuckTaskCheckIntervalMinutes) * time.Minute,
	}, app.logger)

	runner.SetErrorHandler(func(t *task.Task, err error) {
		app.logger.Error("task failed permanently",
			"task_id", t.ID,
			"queue", t.Queue,
			"task_type", t.Type,
			"error", err)
	})

	handlers := map[string]task.Handler{
		task.QueueMediaProcessing: app.mediaService,
		task.QueueGitHubBuild:     app.projectService,
		task.QueueAITask:          app.aiTaskService,
	}
	workers := map[string]int{
		task.QueueMediaProcessing: cfg.MediaWorkers,
		task.QueueGitHubBuild:     cfg.GitHubWorkers,
		task.QueueAITask:          cfg.AIWorkers,
	}

	for _, policy := range task.DefaultPolicies() {
		if n := workers[policy.Name]; n > 0 {
			policy.Workers = n
		}
		if err := runner.Register(policy, handlers[policy.Name]); err != nil {
			return nil, fmt.Errorf("failed to register queue %s: %w", policy.Name, err)
		}
	}
	return runner, nil
}

// Run starts the task runner and serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.taskRunner.Start(); err != nil {
		app.logger.Error("failed to start task runner", "error", err)
		app.cleanup()
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	app.logger.Info("task runner started", "queues", app.taskRunner.Queues())

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops background work and closes the database. In-flight webhook
// processing is drained before the runner stops since it may enqueue tasks.
func (app *application) cleanup() {
	if app.webhookHandler != nil {
		app.webhookHandler.Wait()
	}
	if app.taskRunner != nil {
		app.logger.Info("stopping task runner")
		app.taskRunner.Stop()
	}
	if app.db != nil {
		app.logger.Info("closing database connection")
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
