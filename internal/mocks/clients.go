package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/ocr"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
)

// SentMessage records one SendText call.
type SentMessage struct {
	To   string
	Body string
}

// MockWhatsApp records outbound traffic instead of calling the Cloud API.
type MockWhatsApp struct {
	SendTextFn      func(ctx context.Context, to, body string) (string, error)
	DownloadMediaFn func(ctx context.Context, mediaID string) (*whatsapp.Media, error)
	MarkAsReadErr   error

	mu   sync.Mutex
	Sent []SentMessage
	Read []string
}

func (m *MockWhatsApp) SendText(ctx context.Context, to, body string) (string, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	n := len(m.Sent)
	m.mu.Unlock()
	if m.SendTextFn != nil {
		return m.SendTextFn(ctx, to, body)
	}
	return fmt.Sprintf("wamid.out.%d", n), nil
}

func (m *MockWhatsApp) MarkAsRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Read = append(m.Read, messageID)
	return m.MarkAsReadErr
}

func (m *MockWhatsApp) DownloadMedia(ctx context.Context, mediaID string) (*whatsapp.Media, error) {
	if m.DownloadMediaFn != nil {
		return m.DownloadMediaFn(ctx, mediaID)
	}
	return nil, errors.New("no media configured")
}

// SentMessages returns a copy of the recorded messages.
func (m *MockWhatsApp) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockMediaStorage keeps saved files in memory keyed by path.
type MockMediaStorage struct {
	SaveErr      error
	ThumbnailErr error

	mu    sync.Mutex
	Files map[string][]byte
}

// NewMockMediaStorage creates an empty in-memory storage.
func NewMockMediaStorage() *MockMediaStorage {
	return &MockMediaStorage{Files: make(map[string][]byte)}
}

func (m *MockMediaStorage) Save(data []byte, mimeType string) (string, string, error) {
	if m.SaveErr != nil {
		return "", "", m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	filename := uuid.NewString() + ".bin"
	path := "/media/" + filename
	m.Files[path] = data
	return path, filename, nil
}

func (m *MockMediaStorage) Thumbnail(path string) (string, error) {
	if m.ThumbnailErr != nil {
		return "", m.ThumbnailErr
	}
	return path + "_thumb", nil
}

func (m *MockMediaStorage) Read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[path]
	if !ok {
		return nil, fmt.Errorf("file %s not found", path)
	}
	return data, nil
}

// MockTextExtractor returns a fixed OCR result.
type MockTextExtractor struct {
	Result ocr.Result
	Err    error
	Calls  int
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, path string) (ocr.Result, error) {
	m.Calls++
	return m.Result, m.Err
}

// MockRepositoryHost records repository creation and commits.
type MockRepositoryHost struct {
	CreateErr error
	CommitErr error

	Created   []string
	Committed []github.File
	Message   string
}

func (m *MockRepositoryHost) CreateRepository(
	ctx context.Context,
	name, description string,
	private bool,
) (*github.Repository, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, name)
	return &github.Repository{
		ID:            42,
		Name:          name,
		FullName:      "octocat/" + name,
		HTMLURL:       "https://github.com/octocat/" + name,
		DefaultBranch: "main",
	}, nil
}

func (m *MockRepositoryHost) CommitFiles(ctx context.Context, repo string, files []github.File, message string) (string, error) {
	if m.CommitErr != nil {
		return "", m.CommitErr
	}
	m.Committed = append(m.Committed, files...)
	m.Message = message
	return "abc123", nil
}

// MockAIProvider implements ai.Provider. CompleteFn and DescribeFn take
// precedence over the fixed Reply and Description.
type MockAIProvider struct {
	CompleteFn func(ctx context.Context, messages []ai.Message, opts ai.Options) (ai.Completion, error)
	DescribeFn func(ctx context.Context, imageURL, prompt string) (string, error)

	Reply       string
	Description string
	Err         error

	mu       sync.Mutex
	Requests [][]ai.Message
	Images   []string
}

func (m *MockAIProvider) Complete(ctx context.Context, messages []ai.Message, opts ai.Options) (ai.Completion, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, messages)
	m.mu.Unlock()
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, messages, opts)
	}
	if m.Err != nil {
		return ai.Completion{}, m.Err
	}
	return ai.Completion{Content: m.Reply, Model: "mock", Usage: ai.Usage{TotalTokens: 10}}, nil
}

func (m *MockAIProvider) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	m.mu.Lock()
	m.Images = append(m.Images, imageURL)
	m.mu.Unlock()
	if m.DescribeFn != nil {
		return m.DescribeFn(ctx, imageURL, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Description, nil
}

var _ ai.Provider = (*MockAIProvider)(nil)
