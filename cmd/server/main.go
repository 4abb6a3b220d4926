// Package main implements the WhatsApp assistant server: the webhook and
// REST API, the background task runner and database migrations.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "whatsapp-assistant",
		Short:         "WhatsApp AI assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand serves.
		RunE: runServe,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background task runner",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|reset]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeApp()
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("database setup failed", "error", err)
				return err
			}
			defer func() { _ = db.Close() }()

			if err := runMigrations(cmd.Context(), db, args[0], log); err != nil {
				log.Error("migration failed", "command", args[0], "error", err)
				return err
			}
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := initializeApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("database setup failed", "error", err)
		return err
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		log.Error("application setup failed", "error", err)
		_ = db.Close()
		return err
	}

	if err := app.Run(ctx); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	return nil
}

// initializeApp loads configuration and sets up the default logger.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"environment", cfg.Server.Environment,
		"ai_provider", cfg.AI.Provider)
	log.Debug("optional integrations",
		"ocr_configured", cfg.OCR.APIKey != "",
		"github_configured", cfg.GitHub.Token != "",
		"webhook_signature_check", cfg.WhatsApp.AppSecret != "")
	if cfg.AI.AnthropicAPIKey != "" {
		log.Warn("anthropic api key is set but unsupported", "provider", cfg.AI.Provider)
	}

	return cfg, log, nil
}

