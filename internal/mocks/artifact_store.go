package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// MockArtifactStore implements store.ArtifactStore for testing. Update
// records every status an artifact passes through in History.
type MockArtifactStore struct {
	CreateFn func(ctx context.Context, artifact *domain.Artifact) error

	mu        sync.Mutex
	Artifacts []*domain.Artifact
	History   map[uuid.UUID][]domain.ArtifactStatus
}

// NewMockArtifactStore creates an empty artifact store.
func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{History: make(map[uuid.UUID][]domain.ArtifactStatus)}
}

func (m *MockArtifactStore) Create(ctx context.Context, artifact *domain.Artifact) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, artifact)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Artifacts = append(m.Artifacts, artifact)
	m.History[artifact.ID] = append(m.History[artifact.ID], artifact.Status)
	return nil
}

func (m *MockArtifactStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Artifacts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, store.ErrArtifactNotFound
}

func (m *MockArtifactStore) Update(ctx context.Context, artifact *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.Artifacts {
		if a.ID == artifact.ID {
			m.Artifacts[i] = artifact
			m.History[artifact.ID] = append(m.History[artifact.ID], artifact.Status)
			return nil
		}
	}
	return store.ErrArtifactNotFound
}

func (m *MockArtifactStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Artifact
	for _, a := range m.Artifacts {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockArtifactStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	list, _ := m.ListBySession(ctx, sessionID)
	return len(list), nil
}

func (m *MockArtifactStore) WithTx(tx *sql.Tx) store.ArtifactStore {
	return m
}
