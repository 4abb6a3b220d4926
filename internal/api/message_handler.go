package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
)

// MessageSender delivers a WhatsApp text on behalf of a user.
type MessageSender interface {
	Send(ctx context.Context, userID uuid.UUID, to, text string) (*domain.Message, error)
}

// MessageHandler serves POST /api/messages/send.
type MessageHandler struct {
	sender MessageSender
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(sender MessageSender) *MessageHandler {
	return &MessageHandler{sender: sender}
}

// Send handles POST /api/messages/send.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.sender.Send(r.Context(), userID, req.To, req.Message)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to send message")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, msg)
}
