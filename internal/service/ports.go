package service

import (
	"context"

	"github.com/phrazzld/whatsapp-assistant/internal/platform/github"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/ocr"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/storage"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
)

// WhatsAppClient is the subset of the Cloud API the services use.
type WhatsAppClient interface {
	SendText(ctx context.Context, to, body string) (string, error)
	MarkAsRead(ctx context.Context, messageID string) error
	DownloadMedia(ctx context.Context, mediaID string) (*whatsapp.Media, error)
}

// MediaStorage persists downloaded media files.
type MediaStorage interface {
	Save(data []byte, mimeType string) (path, filename string, err error)
	Thumbnail(path string) (string, error)
	Read(path string) ([]byte, error)
}

// TextExtractor runs OCR on a stored image.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (ocr.Result, error)
}

// RepositoryHost creates repositories and commits files to them.
type RepositoryHost interface {
	CreateRepository(ctx context.Context, name, description string, private bool) (*github.Repository, error)
	CommitFiles(ctx context.Context, repo string, files []github.File, message string) (string, error)
}

var (
	_ WhatsAppClient = (*whatsapp.Client)(nil)
	_ MediaStorage   = (*storage.Local)(nil)
	_ TextExtractor  = (*ocr.Client)(nil)
	_ RepositoryHost = (*github.Client)(nil)
)
