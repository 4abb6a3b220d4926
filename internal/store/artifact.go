package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// ArtifactStore defines the interface for artifact persistence.
type ArtifactStore interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	Update(ctx context.Context, artifact *domain.Artifact) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Artifact, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
	WithTx(tx *sql.Tx) ArtifactStore
}
