package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/service/auth"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountInactive):
		return http.StatusUnauthorized

	// Not found errors
	case store.IsNotFoundError(err),
		errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, task.ErrUnknownQueue):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Queue back-pressure
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. fallback is used for unexpected errors.
func GetSafeErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken):
		return "Invalid refresh token"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, service.ErrAccountInactive):
		return "Account is inactive"

	case errors.Is(err, store.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, task.ErrTaskNotFound):
		return "Job not found"
	case errors.Is(err, task.ErrUnknownQueue):
		return "Queue not found"
	case store.IsNotFoundError(err):
		return "Resource not found"

	case errors.Is(err, service.ErrUserExists):
		return "User already exists"
	case errors.Is(err, store.ErrEmailExists):
		return "Email already in use"
	case errors.Is(err, service.ErrInvalidInput):
		// Service validation errors only carry domain messages.
		msg := strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
		return "Invalid input: " + msg
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid input"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Job queue is unavailable, please try again later"

	default:
		return fallback
	}
}
