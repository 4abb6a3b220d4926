package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionType classifies a conversation session.
type SessionType string

const (
	SessionTypeDaily   SessionType = "daily"
	SessionTypeTask    SessionType = "task"
	SessionTypeProject SessionType = "project"
	SessionTypeCustom  SessionType = "custom"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeDaily, SessionTypeTask, SessionTypeProject, SessionTypeCustom:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusArchived  SessionStatus = "archived"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusArchived:
		return true
	}
	return false
}

// Session groups the messages, media and artifacts of one conversation.
// Inbound WhatsApp traffic lands in the user's daily session.
type Session struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"userId"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        SessionType    `json:"type"`
	Status      SessionStatus  `json:"status"`
	Metadata    map[string]any `json:"metadata"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewSession creates an active session that starts now.
func NewSession(userID uuid.UUID, sessionType SessionType, title string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Type:      sessionType,
		Status:    SessionStatusActive,
		Metadata:  map[string]any{},
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the Session has valid data.
func (s *Session) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}
	if s.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if !s.Type.Valid() {
		return ErrInvalidSessionType
	}
	if !s.Status.Valid() {
		return ErrInvalidSessionStatus
	}
	return nil
}

// Complete marks the session completed at now.
func (s *Session) Complete(now time.Time) {
	now = now.UTC()
	s.Status = SessionStatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// Archive hides the session from the active list.
func (s *Session) Archive() {
	s.Status = SessionStatusArchived
	s.UpdatedAt = time.Now().UTC()
}

// Duration is the time from start until completion, or until now for a
// session that is still open.
func (s *Session) Duration(now time.Time) time.Duration {
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return end.Sub(s.StartedAt)
}

// DailyTitle is the title given to the automatic per-day session.
func DailyTitle(t time.Time) string {
	return "Session " + t.Format("2006-01-02")
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
