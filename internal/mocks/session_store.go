package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// MockSessionStore implements store.SessionStore for testing
type MockSessionStore struct {
	CreateFn func(ctx context.Context, session *domain.Session) error
	UpdateFn func(ctx context.Context, session *domain.Session) error

	mu       sync.Mutex
	Sessions map[uuid.UUID]*domain.Session
}

// NewMockSessionStore creates an empty session store.
func NewMockSessionStore(sessions ...*domain.Session) *MockSessionStore {
	m := &MockSessionStore{Sessions: make(map[uuid.UUID]*domain.Session)}
	for _, s := range sessions {
		m.Sessions[s.ID] = s
	}
	return m
}

func (m *MockSessionStore) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions[session.ID] = session
	return nil
}

func (m *MockSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[id]; ok {
		return s, nil
	}
	return nil, store.ErrSessionNotFound
}

func (m *MockSessionStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*domain.Session, error) {
	s, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	return s, nil
}

func (m *MockSessionStore) FindActiveDaily(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *domain.Session
	for _, s := range m.Sessions {
		if s.UserID != userID || s.Type != domain.SessionTypeDaily ||
			s.Status != domain.SessionStatusActive || s.StartedAt.Before(since) {
			continue
		}
		if found == nil || s.StartedAt.After(found.StartedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, store.ErrSessionNotFound
	}
	return found, nil
}

// List filters and pages the user's sessions, newest first.
func (m *MockSessionStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.SessionFilter,
) ([]*domain.Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Session
	for _, s := range m.Sessions {
		if s.UserID != userID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Session{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (m *MockSessionStore) Update(ctx context.Context, session *domain.Session) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Sessions[session.ID]; !ok {
		return store.ErrSessionNotFound
	}
	m.Sessions[session.ID] = session
	return nil
}

func (m *MockSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return m
}
