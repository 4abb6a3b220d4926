package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
)

// Texts used by the reply pipeline.
const (
	MediaPlaceholderText = "I sent you a media file."
	FallbackReplyText    = "Sorry, I encountered an error processing your message. Please try again."
)

// ConversationService turns inbound WhatsApp messages into stored messages
// and assistant replies.
type ConversationService struct {
	users     UserService
	sessions  SessionService
	messages  store.MessageStore
	media     MediaService
	whatsapp  WhatsAppClient
	assistant *ai.Service
	logger    *slog.Logger
}

// NewConversationService creates a ConversationService.
func NewConversationService(
	users UserService,
	sessions SessionService,
	messages store.MessageStore,
	media MediaService,
	whatsapp WhatsAppClient,
	assistant *ai.Service,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		users:     users,
		sessions:  sessions,
		messages:  messages,
		media:     media,
		whatsapp:  whatsapp,
		assistant: assistant,
		logger:    logger.With("component", "conversation_service"),
	}
}

// HandleWebhook processes every "messages" change of a business account
// payload. Other objects are ignored. Each change is handled independently
// and the returned error joins the failures.
func (s *ConversationService) HandleWebhook(ctx context.Context, payload *whatsapp.Payload) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if payload == nil || payload.Object != whatsapp.BusinessAccountObject {
		log.Debug("ignoring webhook for unsupported object")
		return nil
	}

	var errs []error
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			if err := s.processMessages(ctx, change.Value); err != nil {
				log.Error("failed to process webhook message", "error", err, "entry_id", entry.ID)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// processMessages handles the first message of a change value. Values
// carrying only delivery statuses are skipped.
func (s *ConversationService) processMessages(ctx context.Context, value whatsapp.Value) error {
	if len(value.Messages) == 0 {
		return nil
	}
	in := value.Messages[0]
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"whatsapp_message_id", in.ID,
		"from", redact.Phone(in.From))
	ctx = logger.WithLogger(ctx, log)

	user, err := s.users.GetOrCreateByPhone(ctx, in.From)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	session, err := s.sessions.GetOrCreateDaily(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	msgType, content := inboundContent(&in)
	msg, err := domain.NewMessage(session.ID, user.ID, domain.DirectionInbound, msgType, content,
		domain.MessageStatusDelivered)
	if err != nil {
		return fmt.Errorf("invalid inbound message: %w", err)
	}
	msg.WhatsAppMessageID = in.ID
	if in.Timestamp != "" {
		msg.Metadata["timestamp"] = in.Timestamp
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, store.ErrWhatsAppMessageExists) {
			log.Info("duplicate webhook delivery ignored")
			return nil
		}
		return fmt.Errorf("failed to save inbound message: %w", err)
	}

	if mediaID := in.MediaID(); mediaID != "" && msgType.HasMedia() {
		if _, err := s.media.DownloadAndSave(ctx, mediaID, msg); err != nil {
			log.Error("failed to save inbound media", "error", err)
		}
	}

	if err := s.whatsapp.MarkAsRead(ctx, in.ID); err != nil {
		log.Warn("failed to mark message as read", "error", redact.Error(err))
	}

	s.reply(ctx, user, session, msg)
	return nil
}

// reply generates the assistant's answer and sends it. Any failure is
// answered with FallbackReplyText.
func (s *ConversationService) reply(ctx context.Context, user *domain.User, session *domain.Session, in *domain.Message) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	out, err := s.generateAndSend(ctx, user, session, in)
	if err == nil {
		log.Info("response sent", "message_id", out.ID)
		return
	}

	log.Error("failed to generate response", "error", redact.Error(err))
	if out != nil {
		if uerr := s.messages.UpdateStatus(ctx, out.ID, domain.MessageStatusFailed); uerr != nil {
			log.Error("failed to mark response failed", "error", uerr)
		}
	}
	if _, err := s.whatsapp.SendText(ctx, user.PhoneNumber, FallbackReplyText); err != nil {
		log.Error("failed to send fallback message", "error", redact.Error(err))
	}
}

// generateAndSend returns the stored outbound message, if one was created,
// alongside any error.
func (s *ConversationService) generateAndSend(
	ctx context.Context,
	user *domain.User,
	session *domain.Session,
	in *domain.Message,
) (*domain.Message, error) {
	history, err := s.messages.ListProcessed(ctx, session.ID, ai.DefaultContextSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	prompt := ai.BuildConversationContext(history, ai.DefaultContextSize)
	text := in.Content
	if text == "" {
		text = MediaPlaceholderText
	}
	prompt = append(prompt, ai.Message{Role: ai.RoleUser, Content: text})

	completion, err := s.assistant.GenerateResponse(ctx, prompt, ai.ConversationalPrompt)
	if err != nil {
		return nil, err
	}
	body := truncate(completion.Content, domain.MaxMessageLength)

	out, err := domain.NewMessage(session.ID, user.ID, domain.DirectionOutbound, domain.MessageTypeText,
		body, domain.MessageStatusPending)
	if err != nil {
		return nil, err
	}
	out.Metadata["model"] = completion.Model
	out.Metadata["tokens"] = completion.Usage.TotalTokens
	if err := s.messages.Create(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to save response: %w", err)
	}

	if _, err := s.whatsapp.SendText(ctx, user.PhoneNumber, body); err != nil {
		return out, err
	}
	if err := s.messages.UpdateStatus(ctx, out.ID, domain.MessageStatusSent); err != nil {
		return out, fmt.Errorf("failed to update response status: %w", err)
	}
	// Both sides of the exchange become history for the next reply.
	for _, id := range []uuid.UUID{in.ID, out.ID} {
		if err := s.messages.MarkProcessed(ctx, id); err != nil {
			return out, fmt.Errorf("failed to mark message processed: %w", err)
		}
	}
	return out, nil
}

// inboundContent maps a webhook message onto a stored type and text.
// Unsupported types are stored as empty text messages.
func inboundContent(m *whatsapp.Message) (domain.MessageType, string) {
	switch m.Type {
	case "location":
		if m.Location == nil {
			return domain.MessageTypeLocation, ""
		}
		text := fmt.Sprintf("Location: %.6f, %.6f", m.Location.Latitude, m.Location.Longitude)
		if m.Location.Name != "" {
			text += " (" + m.Location.Name + ")"
		}
		return domain.MessageTypeLocation, text
	}
	t := domain.MessageType(m.Type)
	if !t.Valid() {
		return domain.MessageTypeText, m.Content()
	}
	return t, m.Content()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
