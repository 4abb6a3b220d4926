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

const messageColumns = `id, session_id, user_id, whatsapp_message_id, direction, type,
	content, media_url, status, metadata, is_processed, created_at, updated_at`

// PostgresMessageStore implements store.MessageStore.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageStore creates a message store on db.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_store")),
	}
}

var _ store.MessageStore = (*PostgresMessageStore)(nil)

// Create implements store.MessageStore.Create.
func (s *PostgresMessageStore) Create(ctx context.Context, msg *domain.Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := msg.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(msg.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.UserID,
		nullString(msg.WhatsAppMessageID),
		msg.Direction,
		msg.Type,
		nullString(msg.Content),
		nullString(msg.MediaURL),
		msg.Status,
		metadata,
		msg.IsProcessed,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Warn("duplicate whatsapp message",
				slog.String("whatsapp_message_id", msg.WhatsAppMessageID))
		} else {
			log.Error("failed to create message",
				slog.String("message_id", msg.ID.String()),
				slog.String("session_id", msg.SessionID.String()),
				slog.String("error", redact.Error(err)))
		}
		return mapped
	}
	return nil
}

// GetByID implements store.MessageStore.GetByID.
func (s *PostgresMessageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrMessageNotFound)
	}
	return msg, nil
}

// UpdateStatus implements store.MessageStore.UpdateStatus.
func (s *PostgresMessageStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.MessageStatus,
) error {
	if !status.Valid() {
		return domain.ErrInvalidMessageStatus
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMessageNotFound)
}

// MarkProcessed implements store.MessageStore.MarkProcessed.
func (s *PostgresMessageStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_processed = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMessageNotFound)
}

// ListProcessed implements store.MessageStore.ListProcessed.
func (s *PostgresMessageStore) ListProcessed(
	ctx context.Context,
	sessionID uuid.UUID,
	limit int,
) ([]*domain.Message, error) {
	query := `
		SELECT * FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE session_id = $1 AND is_processed = TRUE
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	return s.query(ctx, query, sessionID, limit)
}

// ListBySession implements store.MessageStore.ListBySession.
func (s *PostgresMessageStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = $1 ORDER BY created_at ASC`
	return s.query(ctx, query, sessionID)
}

// ListRecent implements store.MessageStore.ListRecent.
func (s *PostgresMessageStore) ListRecent(ctx context.Context, sessionID uuid.UUID, n int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return s.query(ctx, query, sessionID, n)
}

// CountBySession implements store.MessageStore.CountBySession.
func (s *PostgresMessageStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return &PostgresMessageStore{db: tx, logger: s.logger}
}

func (s *PostgresMessageStore) query(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, MapError(err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return messages, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		msg                     domain.Message
		waID, content, mediaURL sql.NullString
		metadata                []byte
	)
	err := row.Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.UserID,
		&waID,
		&msg.Direction,
		&msg.Type,
		&content,
		&mediaURL,
		&msg.Status,
		&metadata,
		&msg.IsProcessed,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.WhatsAppMessageID = waID.String
	msg.Content = content.String
	msg.MediaURL = mediaURL.String
	if msg.Metadata, err = decodeObject(metadata); err != nil {
		return nil, err
	}
	return &msg, nil
}
