package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	s, err := NewSession(userID, SessionTypeDaily, "Session 2024-03-01")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Status != SessionStatusActive {
		t.Errorf("Expected status active, got %s", s.Status)
	}
	if s.StartedAt.IsZero() {
		t.Error("Expected non-zero StartedAt")
	}

	if _, err := NewSession(uuid.Nil, SessionTypeTask, ""); err != ErrEmptyUserID {
		t.Errorf("Expected %v, got %v", ErrEmptyUserID, err)
	}
	if _, err := NewSession(userID, SessionType("weekly"), ""); err != ErrInvalidSessionType {
		t.Errorf("Expected %v, got %v", ErrInvalidSessionType, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s, _ := NewSession(uuid.New(), SessionTypeTask, "")
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.StartedAt = start

	if got := s.Duration(start.Add(time.Hour)); got != time.Hour {
		t.Errorf("Expected open session duration 1h, got %v", got)
	}

	s.Complete(start.Add(30 * time.Minute))
	if s.Status != SessionStatusCompleted || s.CompletedAt == nil {
		t.Fatalf("Expected completed session, got %s", s.Status)
	}
	if got := s.Duration(start.Add(5 * time.Hour)); got != 30*time.Minute {
		t.Errorf("Expected completed duration 30m, got %v", got)
	}

	s.Archive()
	if s.Status != SessionStatusArchived {
		t.Errorf("Expected archived, got %s", s.Status)
	}
}

func TestDailyTitle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 12, 5, 23, 59, 0, 0, time.UTC)
	if got := DailyTitle(at); got != "Session 2024-12-05" {
		t.Errorf("Expected Session 2024-12-05, got %s", got)
	}
	if got := StartOfDay(at); !got.Equal(time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start of day %v", got)
	}
}
