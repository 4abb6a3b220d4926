package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

const artifactColumns = `id, user_id, session_id, type, title, description, content, url,
	metadata, status, created_at, updated_at`

// PostgresArtifactStore implements store.ArtifactStore.
type PostgresArtifactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArtifactStore creates an artifact store on db.
func NewPostgresArtifactStore(db store.DBTX, logger *slog.Logger) *PostgresArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

var _ store.ArtifactStore = (*PostgresArtifactStore)(nil)

// Create implements store.ArtifactStore.Create.
func (s *PostgresArtifactStore) Create(ctx context.Context, artifact *domain.Artifact) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := artifact.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(artifact.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO artifacts (` + artifactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		artifact.ID,
		artifact.UserID,
		artifact.SessionID,
		artifact.Type,
		artifact.Title,
		nullString(artifact.Description),
		nullString(artifact.Content),
		nullString(artifact.URL),
		metadata,
		artifact.Status,
		artifact.CreatedAt,
		artifact.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create artifact",
			slog.String("artifact_id", artifact.ID.String()),
			slog.String("session_id", artifact.SessionID.String()),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}

	log.Info("artifact created",
		slog.String("artifact_id", artifact.ID.String()),
		slog.String("type", string(artifact.Type)))
	return nil
}

// GetByID implements store.ArtifactStore.GetByID.
func (s *PostgresArtifactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = $1`
	artifact, err := scanArtifact(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrArtifactNotFound)
	}
	return artifact, nil
}

// Update implements store.ArtifactStore.Update.
func (s *PostgresArtifactStore) Update(ctx context.Context, artifact *domain.Artifact) error {
	if err := artifact.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(artifact.Metadata)
	if err != nil {
		return err
	}

	artifact.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE artifacts
		SET title = $1, description = $2, content = $3, url = $4, metadata = $5,
			status = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		artifact.Title,
		nullString(artifact.Description),
		nullString(artifact.Content),
		nullString(artifact.URL),
		metadata,
		artifact.Status,
		artifact.UpdatedAt,
		artifact.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrArtifactNotFound)
}

// ListBySession implements store.ArtifactStore.ListBySession.
func (s *PostgresArtifactStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE session_id = $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*domain.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, MapError(err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return artifacts, nil
}

// CountBySession implements store.ArtifactStore.CountBySession.
func (s *PostgresArtifactStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresArtifactStore) WithTx(tx *sql.Tx) store.ArtifactStore {
	return &PostgresArtifactStore{db: tx, logger: s.logger}
}

func scanArtifact(row rowScanner) (*domain.Artifact, error) {
	var (
		a                         domain.Artifact
		description, content, url sql.NullString
		metadata                  []byte
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.SessionID,
		&a.Type,
		&a.Title,
		&description,
		&content,
		&url,
		&metadata,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Description = description.String
	a.Content = content.String
	a.URL = url.String
	if a.Metadata, err = decodeObject(metadata); err != nil {
		return nil, err
	}
	return &a, nil
}
