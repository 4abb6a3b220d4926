package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
)

// Auth requests and responses

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	Name        string `json:"name"        validate:"omitempty,max=100"`
	Email       string `json:"email"       validate:"omitempty,email"`
	Password    string `json:"password"    validate:"omitempty,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint. The
// password may be empty for users who never set one.
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	Password    string `json:"password"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateProfileRequest lists the profile fields a user may change.
type UpdateProfileRequest struct {
	Name        string         `json:"name"        validate:"omitempty,max=100"`
	Email       string         `json:"email"       validate:"omitempty,email"`
	Preferences map[string]any `json:"preferences"`
}

// UserResponse is the public view of a user returned by register, login
// and profile updates.
type UserResponse struct {
	ID          uuid.UUID      `json:"id"`
	PhoneNumber string         `json:"phoneNumber"`
	Name        string         `json:"name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// ProfileResponse is the full profile of the authenticated user.
type ProfileResponse struct {
	ID             uuid.UUID      `json:"id"`
	PhoneNumber    string         `json:"phoneNumber"`
	Name           string         `json:"name,omitempty"`
	Email          string         `json:"email,omitempty"`
	ProfilePicture string         `json:"profilePicture,omitempty"`
	Preferences    map[string]any `json:"preferences"`
	LastSeenAt     *time.Time     `json:"lastSeenAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	User UserResponse `json:"user"`

	// Token is the JWT used for API authorization.
	Token string `json:"token"`

	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RefreshTokenResponse carries a fresh token pair.
type RefreshTokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session requests and responses

// CreateSessionRequest defines the payload for creating a session.
type CreateSessionRequest struct {
	Title       string `json:"title"       validate:"omitempty,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Type        string `json:"type"        validate:"omitempty,oneof=daily task project custom"`
}

// UpdateSessionRequest defines the payload for updating a session.
type UpdateSessionRequest struct {
	Title       string `json:"title"       validate:"omitempty,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Status      string `json:"status"      validate:"omitempty,oneof=active completed archived"`
}

// SessionListResponse is one page of a user's sessions.
type SessionListResponse struct {
	Total    int                            `json:"total"`
	Sessions []*service.SessionWithMessages `json:"sessions"`
}

// SessionStatsResponse wraps the counters of one session.
type SessionStatsResponse struct {
	SessionID uuid.UUID             `json:"sessionId"`
	Stats     *service.SessionStats `json:"stats"`
}

// MessageResponse is a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// Build and job requests and responses

// ProjectFile is one file of a generated repository.
type ProjectFile struct {
	Path    string `json:"path"    validate:"required"`
	Content string `json:"content" validate:"required"`
}

// BuildProjectRequest defines the payload for a repository build.
type BuildProjectRequest struct {
	Name        string        `json:"name"        validate:"required,max=80"`
	Description string        `json:"description" validate:"omitempty,max=350"`
	IsPrivate   bool          `json:"isPrivate"`
	Files       []ProjectFile `json:"files"       validate:"omitempty,dive"`
}

// JobAcceptedResponse identifies a queued background job.
type JobAcceptedResponse struct {
	JobID uuid.UUID `json:"job_id"`
	Queue string    `json:"queue"`
}

// Messaging requests

// SendMessageRequest defines the payload for sending a WhatsApp message.
type SendMessageRequest struct {
	To      string `json:"to"      validate:"required,phone"`
	Message string `json:"message" validate:"required,max=4096"`
}

// Conversion helpers

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Name:        u.Name,
		Email:       u.Email,
		Preferences: u.Preferences,
	}
}

func newProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:             u.ID,
		PhoneNumber:    u.PhoneNumber,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Preferences:    u.Preferences,
		LastSeenAt:     u.LastSeenAt,
		CreatedAt:      u.CreatedAt,
	}
}
