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

const mediaColumns = `id, message_id, user_id, session_id, type, original_url, stored_path,
	filename, mime_type, size, extracted_text, classification, metadata, is_processed,
	created_at, updated_at`

// PostgresMediaStore implements store.MediaStore.
type PostgresMediaStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMediaStore creates a media store on db.
func NewPostgresMediaStore(db store.DBTX, logger *slog.Logger) *PostgresMediaStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMediaStore{
		db:     db,
		logger: logger.With(slog.String("component", "media_store")),
	}
}

var _ store.MediaStore = (*PostgresMediaStore)(nil)

// Create implements store.MediaStore.Create.
func (s *PostgresMediaStore) Create(ctx context.Context, media *domain.Media) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := media.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(media.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		media.ID,
		media.MessageID,
		media.UserID,
		media.SessionID,
		media.Type,
		nullString(media.OriginalURL),
		media.StoredPath,
		nullString(media.Filename),
		nullString(media.MimeType),
		media.Size,
		nullString(media.ExtractedText),
		nullString(media.Classification),
		metadata,
		media.IsProcessed,
		media.CreatedAt,
		media.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create media",
			slog.String("media_id", media.ID.String()),
			slog.String("message_id", media.MessageID.String()),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.MediaStore.GetByID.
func (s *PostgresMediaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`
	media, err := scanMedia(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrMediaNotFound)
	}
	return media, nil
}

// Update writes the processing results of a media row.
func (s *PostgresMediaStore) Update(ctx context.Context, media *domain.Media) error {
	if err := media.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(media.Metadata)
	if err != nil {
		return err
	}

	media.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE media
		SET extracted_text = $1, classification = $2, metadata = $3, is_processed = $4,
			stored_path = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		nullString(media.ExtractedText),
		nullString(media.Classification),
		metadata,
		media.IsProcessed,
		media.StoredPath,
		media.UpdatedAt,
		media.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMediaNotFound)
}

// ListBySession implements store.MediaStore.ListBySession.
func (s *PostgresMediaStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE session_id = $1 ORDER BY created_at ASC`
	return s.query(ctx, query, sessionID)
}

// ListByMessage implements store.MediaStore.ListByMessage.
func (s *PostgresMediaStore) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE message_id = $1 ORDER BY created_at ASC`
	return s.query(ctx, query, messageID)
}

// CountBySession implements store.MediaStore.CountBySession.
func (s *PostgresMediaStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresMediaStore) WithTx(tx *sql.Tx) store.MediaStore {
	return &PostgresMediaStore{db: tx, logger: s.logger}
}

func (s *PostgresMediaStore) query(ctx context.Context, query string, args ...any) ([]*domain.Media, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, MapError(err)
		}
		items = append(items, media)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}

func scanMedia(row rowScanner) (*domain.Media, error) {
	var (
		m                               domain.Media
		originalURL, filename, mimeType sql.NullString
		extractedText, classification   sql.NullString
		metadata                        []byte
	)
	err := row.Scan(
		&m.ID,
		&m.MessageID,
		&m.UserID,
		&m.SessionID,
		&m.Type,
		&originalURL,
		&m.StoredPath,
		&filename,
		&mimeType,
		&m.Size,
		&extractedText,
		&classification,
		&metadata,
		&m.IsProcessed,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.OriginalURL = originalURL.String
	m.Filename = filename.String
	m.MimeType = mimeType.String
	m.ExtractedText = extractedText.String
	m.Classification = classification.String
	if m.Metadata, err = decodeObject(metadata); err != nil {
		return nil, err
	}
	return &m, nil
}
