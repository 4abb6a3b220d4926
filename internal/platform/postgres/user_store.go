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

const userColumns = `id, phone_number, name, email, hashed_password, profile_picture,
	preferences, is_active, last_seen_at, created_at, updated_at`

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// Create implements store.UserStore.Create.
// Returns store.ErrPhoneExists or store.ErrEmailExists on a conflict.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	prefs, err := encodeObject(user.Preferences)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.PhoneNumber,
		nullString(user.Name),
		nullString(user.Email),
		nullString(user.HashedPassword),
		nullString(user.ProfilePicture),
		prefs,
		user.IsActive,
		nullTime(user.LastSeenAt),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		log.Error("failed to create user",
			slog.String("error", redact.Error(err)),
			slog.String("phone", redact.Phone(user.PhoneNumber)))
		return mapped
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()),
		slog.String("phone", redact.Phone(user.PhoneNumber)))
	return nil
}

// GetByID implements store.UserStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, store.ErrUserNotFound)
	}
	return user, nil
}

// GetByPhone implements store.UserStore.GetByPhone.
func (s *PostgresUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		return nil, mapNotFound(err, store.ErrUserNotFound)
	}
	return user, nil
}

// Update implements store.UserStore.Update.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return err
	}
	prefs, err := encodeObject(user.Preferences)
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users
		SET name = $1, email = $2, hashed_password = $3, profile_picture = $4,
			preferences = $5, is_active = $6, last_seen_at = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		nullString(user.Name),
		nullString(user.Email),
		nullString(user.HashedPassword),
		nullString(user.ProfilePicture),
		prefs,
		user.IsActive,
		nullTime(user.LastSeenAt),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		log.Error("failed to update user",
			slog.String("user_id", user.ID.String()),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}

// Touch implements store.UserStore.Touch.
func (s *PostgresUserStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = $1, updated_at = $1 WHERE id = $2`,
		at.UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                                    domain.User
		name, email, password, profilePicture sql.NullString
		prefs                                []byte
		lastSeen                             sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.PhoneNumber,
		&name,
		&email,
		&password,
		&profilePicture,
		&prefs,
		&u.IsActive,
		&lastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Email = email.String
	u.HashedPassword = password.String
	u.ProfilePicture = profilePicture.String
	u.LastSeenAt = timePtr(lastSeen)
	if u.Preferences, err = decodeObject(prefs); err != nil {
		return nil, err
	}
	return &u, nil
}
