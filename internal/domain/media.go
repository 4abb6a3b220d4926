package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaType is the kind of file attached to a message.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeDocument MediaType = "document"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeVideo    MediaType = "video"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeDocument, MediaTypeAudio, MediaTypeVideo:
		return true
	}
	return false
}

// Image classification categories produced by the vision model.
const (
	ClassErrorScreenshot = "error_screenshot"
	ClassCodeSnippet     = "code_snippet"
	ClassUIDesign        = "ui_design"
	ClassDiagram         = "diagram"
	ClassNote            = "note"
	ClassDocument        = "document"
	ClassOther           = "other"
)

// Classifications lists the categories in prompt order.
var Classifications = []string{
	ClassErrorScreenshot,
	ClassCodeSnippet,
	ClassUIDesign,
	ClassDiagram,
	ClassNote,
	ClassDocument,
	ClassOther,
}

// NormalizeClassification maps free-form model output onto a known category.
// Anything unrecognised becomes "other".
func NormalizeClassification(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".\"'`")
	for _, c := range Classifications {
		if s == c {
			return c
		}
	}
	return ClassOther
}

// Media is a file received over WhatsApp and stored locally, along with the
// results of background OCR and classification.
type Media struct {
	ID             uuid.UUID      `json:"id"`
	MessageID      uuid.UUID      `json:"messageId"`
	UserID         uuid.UUID      `json:"userId"`
	SessionID      uuid.UUID      `json:"sessionId"`
	Type           MediaType      `json:"type"`
	OriginalURL    string         `json:"originalUrl,omitempty"`
	StoredPath     string         `json:"storedPath"`
	Filename       string         `json:"filename,omitempty"`
	MimeType       string         `json:"mimeType,omitempty"`
	Size           int64          `json:"size"`
	ExtractedText  string         `json:"extractedText,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	IsProcessed    bool           `json:"isProcessed"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Validate checks if the Media has valid data.
func (m *Media) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyID
	}
	if m.MessageID == uuid.Nil {
		return ErrEmptyMessageID
	}
	if m.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if m.SessionID == uuid.Nil {
		return ErrEmptySessionID
	}
	if !m.Type.Valid() {
		return ErrInvalidMediaType
	}
	if m.StoredPath == "" {
		return ErrEmptyMediaPath
	}
	return nil
}

// IsImage reports whether the media can be sent to OCR and the vision model.
func (m *Media) IsImage() bool {
	return m.Type == MediaTypeImage
}
