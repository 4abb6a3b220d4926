package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
)

// DefaultThumbnailSize bounds both thumbnail dimensions.
const DefaultThumbnailSize = 300

var mimeExtensions = map[string]string{
	"image/jpeg":               "jpg",
	"image/jpg":                "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"video/mp4":                "mp4",
	"video/3gpp":               "3gp",
	"audio/aac":                "aac",
	"audio/mp4":                "m4a",
	"audio/mpeg":               "mp3",
	"audio/amr":                "amr",
	"audio/ogg":                "ogg",
	"application/pdf":          "pdf",
	"application/msword":       "doc",
	"application/vnd.ms-excel": "xls",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
}

// ExtensionFor returns the file extension, without the dot, for a MIME type.
// Parameters such as "; codecs=opus" are ignored. Unknown types map to "bin".
func ExtensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(base))]; ok {
		return ext
	}
	return "bin"
}

// Local stores files under a single directory.
type Local struct {
	dir           string
	thumbnailSize int
	logger        *slog.Logger
}

// NewLocal creates the storage directory if needed.
func NewLocal(cfg config.StorageConfig, log *slog.Logger) (*Local, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	size := cfg.ThumbnailSize
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	return &Local{
		dir:           cfg.LocalPath,
		thumbnailSize: size,
		logger:        log.With(slog.String("component", "media_storage")),
	}, nil
}

// Dir returns the storage directory.
func (l *Local) Dir() string { return l.dir }

// Save writes data to a new file named <uuid>.<ext> and returns its path and
// file name.
func (l *Local) Save(data []byte, mimeType string) (path, filename string, err error) {
	filename = uuid.NewString() + "." + ExtensionFor(mimeType)
	path = filepath.Join(l.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write media file: %w", err)
	}
	l.logger.Info("media saved", slog.String("filename", filename), slog.Int("size", len(data)))
	return path, filename, nil
}

// Thumbnail writes a copy of the image at path scaled to fit the configured
// bounds, as <name>_thumb<ext> beside the original. It returns the
// thumbnail's path.
func (l *Local) Thumbnail(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	thumb := imaging.Fit(img, l.thumbnailSize, l.thumbnailSize, imaging.Lanczos)

	ext := filepath.Ext(path)
	thumbPath := strings.TrimSuffix(path, ext) + "_thumb" + ext
	if err := imaging.Save(thumb, thumbPath); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return thumbPath, nil
}

// Open opens a stored file for reading.
func (l *Local) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

// Read returns the contents of a stored file.
func (l *Local) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	return data, nil
}
