package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// MessagingService sends messages on behalf of an API user.
type MessagingService struct {
	whatsapp WhatsAppClient
	sessions SessionService
	messages store.MessageStore
	logger   *slog.Logger
}

// NewMessagingService creates a MessagingService.
func NewMessagingService(
	whatsapp WhatsAppClient,
	sessions SessionService,
	messages store.MessageStore,
	logger *slog.Logger,
) *MessagingService {
	return &MessagingService{
		whatsapp: whatsapp,
		sessions: sessions,
		messages: messages,
		logger:   logger.With("component", "messaging_service"),
	}
}

// Send delivers text to the given number and records it as an outbound
// message in the user's daily session. A failed delivery is still recorded,
// with status failed.
func (s *MessagingService) Send(ctx context.Context, userID uuid.UUID, to, text string) (*domain.Message, error) {
	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if !domain.ValidPhoneNumber(to) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidPhone)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrMessageContentTooLong)
	}

	session, err := s.sessions.GetOrCreateDaily(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg, err := domain.NewMessage(session.ID, userID, domain.DirectionOutbound, domain.MessageTypeText,
		text, domain.MessageStatusSent)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	msg.Metadata["to"] = to

	waID, sendErr := s.whatsapp.SendText(ctx, to, text)
	if sendErr != nil {
		msg.Status = domain.MessageStatusFailed
	} else {
		msg.WhatsAppMessageID = waID
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error("failed to record outbound message", "error", err, "user_id", userID)
		if sendErr == nil {
			return nil, fmt.Errorf("message sent but not recorded: %w", err)
		}
	}
	if sendErr != nil {
		s.logger.Error("failed to send message",
			"error", redact.Error(sendErr),
			"to", redact.Phone(to))
		return nil, fmt.Errorf("failed to send message: %w", sendErr)
	}

	s.logger.Info("message sent", "message_id", msg.ID, "to", redact.Phone(to))
	return msg, nil
}
