// Package logger provides structured logging for the application.
//
// It builds a log/slog JSON logger from the server configuration and carries
// request-scoped loggers through context.Context so that handlers, services
// and background workers log with the same trace attributes.
package logger
