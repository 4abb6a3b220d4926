package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// MockMessageStore implements store.MessageStore for testing. Messages are
// kept in insertion order, which stands in for created_at ordering.
type MockMessageStore struct {
	CreateFn       func(ctx context.Context, msg *domain.Message) error
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.MessageStatus) error

	mu       sync.Mutex
	Messages []*domain.Message
}

// NewMockMessageStore creates an empty message store.
func NewMockMessageStore() *MockMessageStore {
	return &MockMessageStore{}
}

func (m *MockMessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.WhatsAppMessageID != "" {
		for _, existing := range m.Messages {
			if existing.WhatsAppMessageID == msg.WhatsAppMessageID {
				return store.ErrWhatsAppMessageExists
			}
		}
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *MockMessageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, store.ErrMessageNotFound
}

func (m *MockMessageStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	msg, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	msg.Status = status
	m.mu.Unlock()
	return nil
}

func (m *MockMessageStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	msg, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	msg.IsProcessed = true
	m.mu.Unlock()
	return nil
}

func (m *MockMessageStore) ListProcessed(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error) {
	all := m.bySession(sessionID)
	var out []*domain.Message
	for _, msg := range all {
		if msg.IsProcessed {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MockMessageStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error) {
	return m.bySession(sessionID), nil
}

func (m *MockMessageStore) ListRecent(ctx context.Context, sessionID uuid.UUID, n int) ([]*domain.Message, error) {
	all := m.bySession(sessionID)
	out := make([]*domain.Message, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MockMessageStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	return len(m.bySession(sessionID)), nil
}

func (m *MockMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return m
}

func (m *MockMessageStore) bySession(sessionID uuid.UUID) []*domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.Messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out
}
