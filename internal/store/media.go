package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// MediaStore defines the interface for stored media persistence.
type MediaStore interface {
	Create(ctx context.Context, media *domain.Media) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error)
	Update(ctx context.Context, media *domain.Media) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Media, error)
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Media, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
	WithTx(tx *sql.Tx) MediaStore
}
