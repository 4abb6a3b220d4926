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
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// Session listing defaults.
const (
	DefaultSessionPageSize = 10
	// RecentMessagesPerSession is the number of messages embedded in each
	// entry of a session listing.
	RecentMessagesPerSession = 5
)

// SessionWithMessages is a session listing entry carrying its newest
// messages, newest first.
type SessionWithMessages struct {
	*domain.Session
	Messages []*domain.Message `json:"messages"`
}

// SessionDetail is a session with its full message history, oldest first,
// each message carrying its media, and the session's artifacts.
type SessionDetail struct {
	*domain.Session
	Messages  []*domain.Message  `json:"messages"`
	Artifacts []*domain.Artifact `json:"artifacts"`
}

// SessionStats counts a session's contents. Duration is in milliseconds.
type SessionStats struct {
	Messages  int   `json:"messages"`
	Media     int   `json:"media"`
	Artifacts int   `json:"artifacts"`
	Duration  int64 `json:"duration"`
}

// CreateSessionParams describes a session created through the API.
type CreateSessionParams struct {
	Title       string
	Description string
	Type        domain.SessionType
}

// SessionUpdate lists the mutable session fields. Empty values are ignored.
type SessionUpdate struct {
	Title       string
	Description string
	Status      domain.SessionStatus
}

// SessionService manages a user's sessions. Every method taking a userID
// reports sessions owned by someone else as store.ErrSessionNotFound.
type SessionService interface {
	List(ctx context.Context, userID uuid.UUID, filter store.SessionFilter) ([]*SessionWithMessages, int, error)
	Get(ctx context.Context, userID, sessionID uuid.UUID) (*SessionDetail, error)
	Create(ctx context.Context, userID uuid.UUID, params CreateSessionParams) (*domain.Session, error)
	Update(ctx context.Context, userID, sessionID uuid.UUID, update SessionUpdate) (*domain.Session, error)
	Archive(ctx context.Context, userID, sessionID uuid.UUID) error
	Stats(ctx context.Context, userID, sessionID uuid.UUID) (*SessionStats, error)

	// GetOrCreateDaily returns the user's active daily session for today,
	// starting a new one if needed.
	GetOrCreateDaily(ctx context.Context, userID uuid.UUID) (*domain.Session, error)
}

// SessionServiceImpl implements SessionService.
type SessionServiceImpl struct {
	sessions  store.SessionStore
	messages  store.MessageStore
	media     store.MediaStore
	artifacts store.ArtifactStore
	db        store.TxBeginner
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(
	sessions store.SessionStore,
	messages store.MessageStore,
	media store.MediaStore,
	artifacts store.ArtifactStore,
	db store.TxBeginner,
	logger *slog.Logger,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		sessions:  sessions,
		messages:  messages,
		media:     media,
		artifacts: artifacts,
		db:        db,
		logger:    logger.With("component", "session_service"),
		now:       time.Now,
	}
}

func (s *SessionServiceImpl) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.SessionFilter,
) ([]*SessionWithMessages, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultSessionPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidSessionStatus)
	}

	sessions, total, err := s.sessions.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]*SessionWithMessages, 0, len(sessions))
	for _, sess := range sessions {
		recent, err := s.messages.ListRecent(ctx, sess.ID, RecentMessagesPerSession)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list recent messages: %w", err)
		}
		if recent == nil {
			recent = []*domain.Message{}
		}
		out = append(out, &SessionWithMessages{Session: sess, Messages: recent})
	}
	return out, total, nil
}

func (s *SessionServiceImpl) Get(ctx context.Context, userID, sessionID uuid.UUID) (*SessionDetail, error) {
	sess, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	media, err := s.media.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	artifacts, err := s.artifacts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	byMessage := make(map[uuid.UUID][]*domain.Media, len(media))
	for _, m := range media {
		byMessage[m.MessageID] = append(byMessage[m.MessageID], m)
	}
	for _, msg := range messages {
		msg.Media = byMessage[msg.ID]
	}

	if messages == nil {
		messages = []*domain.Message{}
	}
	if artifacts == nil {
		artifacts = []*domain.Artifact{}
	}
	return &SessionDetail{Session: sess, Messages: messages, Artifacts: artifacts}, nil
}

func (s *SessionServiceImpl) Create(
	ctx context.Context,
	userID uuid.UUID,
	params CreateSessionParams,
) (*domain.Session, error) {
	sessionType := params.Type
	if sessionType == "" {
		sessionType = domain.SessionTypeTask
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = "Session " + s.now().UTC().Format(time.RFC3339)
	}

	sess, err := domain.NewSession(userID, sessionType, title)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	sess.Description = strings.TrimSpace(params.Description)

	if err := s.sessions.Create(ctx, sess); err != nil {
		s.logger.Error("failed to create session", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session created", "session_id", sess.ID, "user_id", userID, "type", sess.Type)
	return sess, nil
}

// Update applies the non-empty fields. Moving to completed stamps
// completed_at.
func (s *SessionServiceImpl) Update(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	update SessionUpdate,
) (*domain.Session, error) {
	if update.Status != "" && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidSessionStatus)
	}

	var updated *domain.Session
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.sessions.WithTx(tx)

		sess, err := txStore.GetForUser(ctx, sessionID, userID)
		if err != nil {
			return err
		}

		if title := strings.TrimSpace(update.Title); title != "" {
			sess.Title = title
		}
		if desc := strings.TrimSpace(update.Description); desc != "" {
			sess.Description = desc
		}
		now := s.now()
		switch update.Status {
		case "":
		case domain.SessionStatusCompleted:
			sess.Complete(now)
		default:
			sess.Status = update.Status
		}
		sess.UpdatedAt = now.UTC()

		if err := txStore.Update(ctx, sess); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		updated = sess
		return nil
	})
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.Error("failed to update session", "error", err, "session_id", sessionID)
		}
		return nil, err
	}

	s.logger.Info("session updated", "session_id", sessionID, "status", updated.Status)
	return updated, nil
}

// Archive soft-deletes a session.
func (s *SessionServiceImpl) Archive(ctx context.Context, userID, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	sess.Archive()
	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	s.logger.Info("session archived", "session_id", sessionID)
	return nil
}

func (s *SessionServiceImpl) Stats(ctx context.Context, userID, sessionID uuid.UUID) (*SessionStats, error) {
	sess, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	media, err := s.media.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count media: %w", err)
	}
	artifacts, err := s.artifacts.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}

	return &SessionStats{
		Messages:  messages,
		Media:     media,
		Artifacts: artifacts,
		Duration:  sess.Duration(s.now()).Milliseconds(),
	}, nil
}

func (s *SessionServiceImpl) GetOrCreateDaily(ctx context.Context, userID uuid.UUID) (*domain.Session, error) {
	now := s.now()

	sess, err := s.sessions.FindActiveDaily(ctx, userID, domain.StartOfDay(now))
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to find daily session: %w", err)
	}

	sess, err = domain.NewSession(userID, domain.SessionTypeDaily, domain.DailyTitle(now))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create daily session: %w", err)
	}

	s.logger.Info("new daily session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

var _ SessionService = (*SessionServiceImpl)(nil)
