package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// The API layer maps them to HTTP status codes.
var (
	// ErrUserExists is returned by Register when the phone number is taken.
	// API layer should map this to HTTP 400 Bad Request.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both an unknown phone number and a wrong
	// password, so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned when an inactive user tries to log in.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrUnknownAITask is returned by the ai-task handler for a task type it
	// does not know.
	ErrUnknownAITask = errors.New("unknown AI task type")

	// ErrInvalidInput wraps validation failures of service arguments.
	ErrInvalidInput = errors.New("invalid input")
)
