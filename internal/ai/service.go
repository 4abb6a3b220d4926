package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
)

// DefaultContextSize is the number of recent messages sent as history.
const DefaultContextSize = 10

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Intent is the structured result of intent extraction.
type Intent struct {
	Intent     string  `json:"intent"`
	Entities   []any   `json:"entities"`
	Confidence float64 `json:"confidence"`
}

// fallbackIntent is returned whenever extraction fails.
func fallbackIntent() Intent {
	return Intent{Intent: "general_query", Entities: []any{}, Confidence: 0.5}
}

// Service wraps a Provider with the assistant's prompts.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

// NewService creates a Service backed by provider.
func NewService(provider Provider, log *slog.Logger) *Service {
	if provider == nil {
		panic("ai provider cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("component", "ai_service")),
	}
}

// GenerateResponse prepends systemPrompt (when set) to history and asks the
// provider for a reply.
func (s *Service) GenerateResponse(ctx context.Context, history []Message, systemPrompt string) (Completion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	messages := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, history...)

	c, err := s.provider.Complete(ctx, messages, Options{})
	if err != nil {
		log.Error("failed to generate AI response", slog.String("error", redact.Error(err)))
		return Completion{}, fmt.Errorf("failed to generate response: %w", err)
	}
	if strings.TrimSpace(c.Content) == "" {
		return Completion{}, ErrEmptyResponse
	}

	log.Info("AI response generated", slog.Int("tokens", c.Usage.TotalTokens))
	return c, nil
}

// AnalyzeImage sends an image and prompt to the vision model.
func (s *Service) AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	out, err := s.provider.DescribeImage(ctx, imageURL, prompt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to analyze image",
			slog.String("error", redact.Error(err)))
		return "", fmt.Errorf("failed to analyze image: %w", err)
	}
	return out, nil
}

// SummarizeConversation produces a short summary of messages.
func (s *Service) SummarizeConversation(ctx context.Context, messages []*domain.Message) (string, error) {
	req := []Message{{Role: RoleUser, Content: summaryRequest(Transcript(messages))}}
	c, err := s.GenerateResponse(ctx, req, summarySystemPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	return c.Content, nil
}

// ExtractIntent classifies text. It never fails: provider or parse errors
// yield the general_query intent.
func (s *Service) ExtractIntent(ctx context.Context, text string) Intent {
	log := logger.FromContextOrDefault(ctx, s.logger)

	messages := []Message{
		{Role: RoleSystem, Content: intentSystemPrompt},
		{Role: RoleUser, Content: intentRequest(text)},
	}
	c, err := s.provider.Complete(ctx, messages, Options{JSONMode: true})
	if err != nil {
		log.Error("intent extraction failed", slog.String("error", redact.Error(err)))
		return fallbackIntent()
	}

	var intent Intent
	if err := json.Unmarshal([]byte(stripCodeFence(c.Content)), &intent); err != nil || intent.Intent == "" {
		log.Warn("intent response was not valid JSON, using fallback")
		return fallbackIntent()
	}
	if intent.Entities == nil {
		intent.Entities = []any{}
	}

	log.Info("intent extracted", slog.String("intent", intent.Intent))
	return intent
}

// BuildConversationContext converts the last limit messages into chat
// history. Inbound messages become user turns and outbound messages assistant
// turns. A limit of zero or less selects DefaultContextSize.
func BuildConversationContext(messages []*domain.Message, limit int) []Message {
	if limit <= 0 {
		limit = DefaultContextSize
	}
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, Message{Role: roleFor(m.Direction), Content: m.Content})
	}
	return out
}

// Transcript renders messages as "User:" and "Assistant:" lines.
func Transcript(messages []*domain.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Direction == domain.DirectionInbound {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

func roleFor(d domain.Direction) Role {
	if d == domain.DirectionInbound {
		return RoleUser
	}
	return RoleAssistant
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
