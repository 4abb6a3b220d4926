package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// MessageStore defines the interface for message persistence.
type MessageStore interface {
	// Create returns ErrWhatsAppMessageExists when the WhatsApp message id
	// has already been stored.
	Create(ctx context.Context, msg *domain.Message) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus) error

	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// ListProcessed returns the newest limit processed messages of a session
	// in chronological order.
	ListProcessed(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error)

	// ListBySession returns every message of a session, oldest first.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error)

	// ListRecent returns the newest n messages of a session, newest first.
	ListRecent(ctx context.Context, sessionID uuid.UUID, n int) ([]*domain.Message, error)

	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)

	WithTx(tx *sql.Tx) MessageStore
}
