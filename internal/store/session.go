package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// SessionFilter narrows a session listing. A zero Status matches every status.
type SessionFilter struct {
	Status domain.SessionStatus
	Limit  int
	Offset int
}

// SessionStore defines the interface for session persistence.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error

	// GetByID returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// GetForUser returns ErrSessionNotFound when the session does not exist or
	// belongs to another user.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Session, error)

	// FindActiveDaily returns the user's active daily session started at or
	// after since, or ErrSessionNotFound.
	FindActiveDaily(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.Session, error)

	// List returns one page of the user's sessions, newest first, and the
	// total number of sessions matching the filter.
	List(ctx context.Context, userID uuid.UUID, filter SessionFilter) ([]*domain.Session, int, error)

	Update(ctx context.Context, session *domain.Session) error

	WithTx(tx *sql.Tx) SessionStore
}
