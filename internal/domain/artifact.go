package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactType classifies what the assistant produced.
type ArtifactType string

const (
	ArtifactTypeCode       ArtifactType = "code"
	ArtifactTypeRepository ArtifactType = "repository"
	ArtifactTypeDocument   ArtifactType = "document"
	ArtifactTypeSummary    ArtifactType = "summary"
	ArtifactTypeAnalysis   ArtifactType = "analysis"
	ArtifactTypeOther      ArtifactType = "other"
)

// Valid reports whether t is a known artifact type.
func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactTypeCode, ArtifactTypeRepository, ArtifactTypeDocument,
		ArtifactTypeSummary, ArtifactTypeAnalysis, ArtifactTypeOther:
		return true
	}
	return false
}

// ArtifactStatus tracks the progress of artifact generation.
type ArtifactStatus string

const (
	ArtifactStatusPending    ArtifactStatus = "pending"
	ArtifactStatusInProgress ArtifactStatus = "in_progress"
	ArtifactStatusCompleted  ArtifactStatus = "completed"
	ArtifactStatusFailed     ArtifactStatus = "failed"
)

// Valid reports whether s is a known artifact status.
func (s ArtifactStatus) Valid() bool {
	switch s {
	case ArtifactStatusPending, ArtifactStatusInProgress, ArtifactStatusCompleted, ArtifactStatusFailed:
		return true
	}
	return false
}

// Artifact is something the assistant produced for a session, such as a
// GitHub repository or a conversation summary.
type Artifact struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"userId"`
	SessionID   uuid.UUID      `json:"sessionId"`
	Type        ArtifactType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	Status      ArtifactStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewArtifact creates a pending artifact.
func NewArtifact(userID, sessionID uuid.UUID, artifactType ArtifactType, title string) (*Artifact, error) {
	now := time.Now().UTC()
	a := &Artifact{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Type:      artifactType,
		Title:     title,
		Metadata:  map[string]any{},
		Status:    ArtifactStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks if the Artifact has valid data.
func (a *Artifact) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyID
	}
	if a.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if a.SessionID == uuid.Nil {
		return ErrEmptySessionID
	}
	if !a.Type.Valid() {
		return ErrInvalidArtifactType
	}
	if !a.Status.Valid() {
		return ErrInvalidArtifactStatus
	}
	return nil
}

// SetStatus moves the artifact to status and bumps UpdatedAt.
func (a *Artifact) SetStatus(status ArtifactStatus) {
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
}
