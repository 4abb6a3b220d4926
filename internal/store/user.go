package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user. Returns ErrPhoneExists or ErrEmailExists on a
	// uniqueness conflict.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByPhone looks a user up by WhatsApp phone number.
	// Returns ErrUserNotFound if the user does not exist.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// Update writes every mutable column, including HashedPassword.
	Update(ctx context.Context, user *domain.User) error

	// Touch sets last_seen_at.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	WithTx(tx *sql.Tx) UserStore
}
