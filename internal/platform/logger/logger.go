package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/whatsapp-assistant/internal/config"
)

// ServiceName is attached to every record emitted by a logger built by Setup.
const ServiceName = "whatsapp-assistant"

// ParseLevel converts a configured level name (case-insensitive) into a
// slog.Level. The boolean is false when the name is not recognised.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to w at the configured level.
// An unknown level falls back to info and a warning is written to warnOut.
func New(w io.Writer, warnOut io.Writer, cfg config.ServerConfig) *slog.Logger {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(warnOut, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	l := slog.New(handler).With(slog.String("service", ServiceName))
	if cfg.Environment != "" {
		l = l.With(slog.String("env", cfg.Environment))
	}
	return l
}

// Setup initializes the application's logging system: it creates a JSON
// logger on stdout and installs it as the slog default so package-level
// slog calls share the same handler.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	l := New(os.Stdout, os.Stderr, cfg)
	slog.SetDefault(l)
	return l, nil
}
