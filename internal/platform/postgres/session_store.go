package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

const sessionColumns = `id, user_id, title, description, type, status, metadata,
	started_at, completed_at, created_at, updated_at`

// PostgresSessionStore implements store.SessionStore.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a session store on db.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

var _ store.SessionStore = (*PostgresSessionStore)(nil)

// Create implements store.SessionStore.Create.
// Returns store.ErrInvalidEntity if the user does not exist.
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.Session) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(session.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		nullString(session.Title),
		nullString(session.Description),
		session.Type,
		session.Status,
		metadata,
		session.StartedAt,
		nullTime(session.CompletedAt),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create session",
			slog.String("session_id", session.ID.String()),
			slog.String("user_id", session.UserID.String()),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}

	log.Debug("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("type", string(session.Type)))
	return nil
}

// GetByID implements store.SessionStore.GetByID.
func (s *PostgresSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrSessionNotFound)
	}
	return session, nil
}

// GetForUser implements store.SessionStore.GetForUser.
func (s *PostgresSessionStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 AND user_id = $2`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, mapNotFound(err, store.ErrSessionNotFound)
	}
	return session, nil
}

// FindActiveDaily implements store.SessionStore.FindActiveDaily.
func (s *PostgresSessionStore) FindActiveDaily(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND type = $2 AND status = $3 AND started_at >= $4
		ORDER BY started_at DESC
		LIMIT 1
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query,
		userID, domain.SessionTypeDaily, domain.SessionStatusActive, since))
	if err != nil {
		return nil, mapNotFound(err, store.ErrSessionNotFound)
	}
	return session, nil
}

// List implements store.SessionStore.List.
func (s *PostgresSessionStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.SessionFilter,
) ([]*domain.Session, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		where += ` AND status = $2`
		args = append(args, filter.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM sessions %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		sessionColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}
	return sessions, total, nil
}

// Update implements store.SessionStore.Update.
func (s *PostgresSessionStore) Update(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	metadata, err := encodeObject(session.Metadata)
	if err != nil {
		return err
	}

	session.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE sessions
		SET title = $1, description = $2, type = $3, status = $4, metadata = $5,
			completed_at = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		nullString(session.Title),
		nullString(session.Description),
		session.Type,
		session.Status,
		metadata,
		nullTime(session.CompletedAt),
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSessionNotFound)
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{db: tx, logger: s.logger}
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session            domain.Session
		title, description sql.NullString
		metadata           []byte
		completedAt        sql.NullTime
	)
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&title,
		&description,
		&session.Type,
		&session.Status,
		&metadata,
		&session.StartedAt,
		&completedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Title = title.String
	session.Description = description.String
	session.CompletedAt = timePtr(completedAt)
	if session.Metadata, err = decodeObject(metadata); err != nil {
		return nil, err
	}
	return &session, nil
}
