package domain

import "errors"

// Common validation errors
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptySessionID   = errors.New("session ID cannot be empty")
	ErrEmptyMessageID   = errors.New("message ID cannot be empty")
	ErrEmptyPhoneNumber = errors.New("phone number cannot be empty")
	ErrInvalidPhone     = errors.New("invalid phone number format")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters long")
)

// Enum validation errors
var (
	ErrInvalidSessionType      = errors.New("invalid session type")
	ErrInvalidSessionStatus    = errors.New("invalid session status")
	ErrInvalidDirection        = errors.New("invalid message direction")
	ErrInvalidMessageType      = errors.New("invalid message type")
	ErrInvalidMessageStatus    = errors.New("invalid message status")
	ErrInvalidMediaType        = errors.New("invalid media type")
	ErrInvalidArtifactType     = errors.New("invalid artifact type")
	ErrInvalidArtifactStatus   = errors.New("invalid artifact status")
	ErrEmptyMediaPath          = errors.New("media stored path cannot be empty")
	ErrMessageContentTooLong   = errors.New("message content exceeds maximum length")
	ErrSessionAlreadyCompleted = errors.New("session is already completed")
)
