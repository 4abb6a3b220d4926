package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/api/shared"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
)

// Webhook acknowledgement and processing limits.
const (
	WebhookAck             = "EVENT_RECEIVED"
	WebhookProcessTimeout  = 2 * time.Minute
	maxWebhookPayloadBytes = 1 << 20
)

// WebhookProcessor handles a parsed webhook payload.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload *whatsapp.Payload) error
}

// WebhookHandler serves GET and POST /webhook.
type WebhookHandler struct {
	processor   WebhookProcessor
	verifyToken string
	appSecret   string
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewWebhookHandler creates a WebhookHandler. An empty appSecret disables
// signature verification.
func NewWebhookHandler(processor WebhookProcessor, verifyToken, appSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor:   processor,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger.With("component", "webhook_handler"),
	}
}

// Verify handles the GET subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !whatsapp.VerifyWebhook(q.Get("hub.mode"), q.Get("hub.verify_token"), h.verifyToken) {
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Verification failed", nil,
			shared.WithElevatedLogLevel())
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("webhook verified")
	shared.RespondWithText(w, http.StatusOK, q.Get("hub.challenge"))
}

// Receive acknowledges a webhook delivery immediately and processes it in
// the background. Payloads that fail to parse are acknowledged too, so
// WhatsApp does not redeliver them.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayloadBytes))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if !whatsapp.VerifySignature(body, r.Header.Get(whatsapp.SignatureHeader), h.appSecret) {
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Invalid signature", nil,
			shared.WithElevatedLogLevel())
		return
	}

	var payload whatsapp.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to parse webhook payload", "error", redact.Error(err))
		shared.RespondWithText(w, http.StatusOK, WebhookAck)
		return
	}

	shared.RespondWithText(w, http.StatusOK, WebhookAck)

	ctx := logger.WithLogger(context.WithoutCancel(r.Context()), log)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, WebhookProcessTimeout)
		defer cancel()

		if err := h.processor.HandleWebhook(ctx, &payload); err != nil {
			log.Error("webhook processing failed", "error", redact.Error(err))
		}
	}()
}

// Wait blocks until every background webhook has been processed.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
