package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength is the longest text body WhatsApp accepts.
const MaxMessageLength = 4096

// Direction tells whether a message came from the user or from the assistant.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType mirrors the WhatsApp message kinds the assistant stores.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeLocation MessageType = "location"
	MessageTypeContacts MessageType = "contacts"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeDocument, MessageTypeAudio,
		MessageTypeVideo, MessageTypeLocation, MessageTypeContacts:
		return true
	}
	return false
}

// HasMedia reports whether messages of this type carry a downloadable file.
func (t MessageType) HasMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeDocument, MessageTypeAudio, MessageTypeVideo:
		return true
	}
	return false
}

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Valid reports whether s is a known message status.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusDelivered,
		MessageStatusRead, MessageStatusFailed:
		return true
	}
	return false
}

// Message is a single WhatsApp message in either direction.
type Message struct {
	ID                uuid.UUID      `json:"id"`
	SessionID         uuid.UUID      `json:"sessionId"`
	UserID            uuid.UUID      `json:"userId"`
	WhatsAppMessageID string         `json:"whatsappMessageId,omitempty"`
	Direction         Direction      `json:"direction"`
	Type              MessageType    `json:"type"`
	Content           string         `json:"content,omitempty"`
	MediaURL          string         `json:"mediaUrl,omitempty"`
	Status            MessageStatus  `json:"status"`
	Metadata          map[string]any `json:"metadata"`
	IsProcessed       bool           `json:"isProcessed"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	Media []*Media `json:"media,omitempty"`
}

// NewMessage creates a message in the given session.
func NewMessage(
	sessionID, userID uuid.UUID,
	direction Direction,
	msgType MessageType,
	content string,
	status MessageStatus,
) (*Message, error) {
	now := time.Now().UTC()
	m := &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Direction: direction,
		Type:      msgType,
		Content:   content,
		Status:    status,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}
	if m.SessionID == uuid.Nil {
		return ErrEmptySessionID
	}
	if m.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if m.Direction != DirectionInbound && m.Direction != DirectionOutbound {
		return ErrInvalidDirection
	}
	if !m.Type.Valid() {
		return ErrInvalidMessageType
	}
	if !m.Status.Valid() {
		return ErrInvalidMessageStatus
	}
	if m.Direction == DirectionOutbound && utf8.RuneCountInString(m.Content) > MaxMessageLength {
		return ErrMessageContentTooLong
	}
	return nil
}
