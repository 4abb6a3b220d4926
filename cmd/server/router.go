package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/whatsapp-assistant/internal/api"
	apiMiddleware "github.com/phrazzld/whatsapp-assistant/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(cors.Handler(app.corsOptions()))

	limits := app.config.RateLimit
	apiLimiter := apiMiddleware.RateLimit(limits.APIRequests, limits.APIWindow)
	authLimiter := apiMiddleware.RateLimit(limits.AuthRequests, limits.AuthWindow)
	webhookLimiter := apiMiddleware.RateLimit(limits.WebhookRequests, limits.WebhookWindow)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.stores.users)

	healthHandler := api.NewHealthHandler()
	authHandler := api.NewAuthHandler(app.userService, app.jwtService, app.config.Auth.TokenLifetime)
	sessionHandler := api.NewSessionHandler(app.sessionService, app.projectService, app.aiTaskService)
	messageHandler := api.NewMessageHandler(app.messagingService)
	jobHandler := api.NewJobHandler(app.taskRunner)

	r.NotFound(healthHandler.NotFound)
	r.MethodNotAllowed(healthHandler.MethodNotAllowed)

	r.Get("/", healthHandler.Root)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(webhookLimiter)
		r.Get("/", app.webhookHandler.Verify)
		r.Post("/", app.webhookHandler.Receive)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(apiLimiter)
			r.Use(authMiddleware.Authenticate)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)
				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Put("/", sessionHandler.Update)
					r.Delete("/", sessionHandler.Delete)
					r.Get("/stats", sessionHandler.Stats)
					r.Post("/build", sessionHandler.Build)
					r.Post("/summarize", sessionHandler.Summarize)
				})
			})

			r.Post("/messages/send", messageHandler.Send)

			r.Get("/queues", jobHandler.ListQueues)
			r.Get("/queues/{queue}/stats", jobHandler.QueueStats)
			r.Get("/jobs/{jobID}", jobHandler.GetJob)
		})
	})

	return r
}

// corsOptions allows the configured frontend origin with credentials. With
// no frontend configured every origin is allowed without credentials.
func (app *application) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
			http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", apiMiddleware.TraceIDHeader},
		ExposedHeaders: []string{apiMiddleware.TraceIDHeader},
		MaxAge:         300,
	}
	if origin := app.config.Server.FrontendURL; origin != "" {
		opts.AllowedOrigins = []string{origin}
		opts.AllowCredentials = true
	} else {
		opts.AllowedOrigins = []string{"*"}
	}
	return opts
}
