package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/service/auth"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// RegisterParams carries the fields of a registration request. Everything
// except the phone number is optional.
type RegisterParams struct {
	PhoneNumber string
	Name        string
	Email       string
	Password    string
}

// ProfileUpdate lists the profile fields a user may change. Empty values
// leave the current value untouched.
type ProfileUpdate struct {
	Name        string
	Email       string
	Preferences map[string]any
}

// UserService provides registration, login and profile operations.
type UserService interface {
	// Register creates a new active user. Returns ErrUserExists when the
	// phone number is already registered.
	Register(ctx context.Context, params RegisterParams) (*domain.User, error)

	// Login authenticates by phone number. Users without a password are
	// let in on the phone number alone.
	Login(ctx context.Context, phone, password string) (*domain.User, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.User, error)

	// GetOrCreateByPhone returns the user owning phone, creating it on
	// first contact, and records the activity.
	GetOrCreateByPhone(ctx context.Context, phone string) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore  store.UserStore
	db         store.TxBeginner
	verifier   auth.PasswordVerifier
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(
	userStore store.UserStore,
	db store.TxBeginner,
	bcryptCost int,
	logger *slog.Logger,
) *UserServiceImpl {
	return &UserServiceImpl{
		userStore:  userStore,
		db:         db,
		verifier:   auth.NewBcryptVerifier(),
		bcryptCost: bcryptCost,
		logger:     logger.With("component", "user_service"),
		now:        time.Now,
	}
}

// Register creates a new user with an optional bcrypt-hashed password.
// Uses a transaction so the existence check and insert see the same state.
func (s *UserServiceImpl) Register(ctx context.Context, params RegisterParams) (*domain.User, error) {
	user, err := domain.NewUser(params.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	user.Name = strings.TrimSpace(params.Name)
	user.Email = strings.TrimSpace(params.Email)
	user.Password = params.Password
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if user.Password != "" {
		hash, err := auth.HashPassword(user.Password, s.bcryptCost)
		if err != nil {
			s.logger.Error("failed to hash password", "error", err)
			return nil, err
		}
		user.HashedPassword = hash
		user.Password = ""
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		if _, err := txStore.GetByPhone(ctx, user.PhoneNumber); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		return txStore.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) || errors.Is(err, store.ErrPhoneExists) {
			s.logger.Debug("attempted to register an existing phone number",
				"phone", redact.Phone(user.PhoneNumber))
			return nil, ErrUserExists
		}
		s.logger.Error("failed to register user",
			"error", err,
			"phone", redact.Phone(user.PhoneNumber))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"phone", redact.Phone(user.PhoneNumber))
	return user, nil
}

// Login checks the credentials and records last_seen_at.
func (s *UserServiceImpl) Login(ctx context.Context, phone, password string) (*domain.User, error) {
	user, err := s.userStore.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	if user.HasPassword() {
		if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
			s.logger.Debug("password mismatch", "user_id", user.ID)
			return nil, ErrInvalidCredentials
		}
	}

	now := s.now()
	if err := s.userStore.Touch(ctx, user.ID, now); err != nil {
		// A failed activity update should not block the login.
		s.logger.Warn("failed to update last seen", "error", err, "user_id", user.ID)
	} else {
		user.Touch(now)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, nil
}

// GetProfile retrieves a user by their ID
func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// UpdateProfile follows the pattern of getting the complete user first,
// then updating only the requested fields.
func (s *UserServiceImpl) UpdateProfile(
	ctx context.Context,
	userID uuid.UUID,
	update ProfileUpdate,
) (*domain.User, error) {
	var updated *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		user, err := txStore.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for update: %w", err)
		}

		if name := strings.TrimSpace(update.Name); name != "" {
			user.Name = name
		}
		if email := strings.TrimSpace(update.Email); email != "" {
			user.Email = email
		}
		if update.Preferences != nil {
			user.Preferences = update.Preferences
		}
		if err := user.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		user.UpdatedAt = s.now().UTC()

		if err := txStore.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) && !store.IsNotFoundError(err) {
			s.logger.Error("failed to update profile", "error", err, "user_id", userID)
		}
		return nil, err
	}

	s.logger.Info("profile updated", "user_id", userID)
	return updated, nil
}

// GetOrCreateByPhone implements the first-contact flow of inbound messages.
func (s *UserServiceImpl) GetOrCreateByPhone(ctx context.Context, phone string) (*domain.User, error) {
	now := s.now()

	user, err := s.userStore.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if err := s.userStore.Touch(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("failed to update last seen: %w", err)
		}
		user.Touch(now)
		return user, nil
	case !errors.Is(err, store.ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err = domain.NewUser(phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	user.Touch(now)

	if err := s.userStore.Create(ctx, user); err != nil {
		// Two webhooks for a new number can race; the loser reads the winner.
		if errors.Is(err, store.ErrPhoneExists) {
			return s.userStore.GetByPhone(ctx, phone)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("new user created",
		"user_id", user.ID,
		"phone", redact.Phone(phone))
	return user, nil
}

var _ UserService = (*UserServiceImpl)(nil)
