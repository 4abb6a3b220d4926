package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// MockMediaStore implements store.MediaStore for testing
type MockMediaStore struct {
	CreateFn func(ctx context.Context, media *domain.Media) error
	UpdateFn func(ctx context.Context, media *domain.Media) error

	mu    sync.Mutex
	Media []*domain.Media
}

// NewMockMediaStore creates a media store holding media.
func NewMockMediaStore(media ...*domain.Media) *MockMediaStore {
	return &MockMediaStore{Media: media}
}

func (m *MockMediaStore) Create(ctx context.Context, media *domain.Media) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, media)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Media = append(m.Media, media)
	return nil
}

func (m *MockMediaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, md := range m.Media {
		if md.ID == id {
			return md, nil
		}
	}
	return nil, store.ErrMediaNotFound
}

func (m *MockMediaStore) Update(ctx context.Context, media *domain.Media) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, media)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, md := range m.Media {
		if md.ID == media.ID {
			m.Media[i] = media
			return nil
		}
	}
	return store.ErrMediaNotFound
}

func (m *MockMediaStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Media, error) {
	return m.filter(func(md *domain.Media) bool { return md.SessionID == sessionID }), nil
}

func (m *MockMediaStore) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Media, error) {
	return m.filter(func(md *domain.Media) bool { return md.MessageID == messageID }), nil
}

func (m *MockMediaStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	list, _ := m.ListBySession(ctx, sessionID)
	return len(list), nil
}

func (m *MockMediaStore) WithTx(tx *sql.Tx) store.MediaStore {
	return m
}

func (m *MockMediaStore) filter(keep func(*domain.Media) bool) []*domain.Media {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Media
	for _, md := range m.Media {
		if keep(md) {
			out = append(out, md)
		}
	}
	return out
}
