package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/phrazzld/whatsapp-assistant/internal/mocks"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

// recordingEmitter captures emitted task requests.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) emitted() []*events.TaskRequestEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), e.events...)
}

// fixture wires every service dependency to an in-memory mock.
type fixture struct {
	users     *mocks.MockUserStore
	sessions  *mocks.MockSessionStore
	messages  *mocks.MockMessageStore
	media     *mocks.MockMediaStore
	artifacts *mocks.MockArtifactStore
	whatsapp  *mocks.MockWhatsApp
	storage   *mocks.MockMediaStorage
	ocr       *mocks.MockTextExtractor
	repos     *mocks.MockRepositoryHost
	provider  *mocks.MockAIProvider
	emitter   *recordingEmitter
}

func newFixture() *fixture {
	return &fixture{
		users:     mocks.NewMockUserStore(),
		sessions:  mocks.NewMockSessionStore(),
		messages:  mocks.NewMockMessageStore(),
		media:     mocks.NewMockMediaStore(),
		artifacts: mocks.NewMockArtifactStore(),
		whatsapp:  &mocks.MockWhatsApp{},
		storage:   mocks.NewMockMediaStorage(),
		ocr:       &mocks.MockTextExtractor{},
		repos:     &mocks.MockRepositoryHost{},
		provider:  &mocks.MockAIProvider{Reply: "Hello from the assistant"},
		emitter:   &recordingEmitter{},
	}
}

func (f *fixture) assistant() *ai.Service {
	return ai.NewService(f.provider, testLogger())
}
