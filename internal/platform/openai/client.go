package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	goopenai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the API responds without any choice.
var ErrNoChoices = errors.New("openai returned no choices")

// Client is an ai.Provider backed by OpenAI.
type Client struct {
	api             *goopenai.Client
	model           string
	visionModel     string
	temperature     float32
	maxTokens       int
	visionMaxTokens int
	logger          *slog.Logger
}

var _ ai.Provider = (*Client)(nil)

// NewClient creates a client from the AI configuration. OpenAIBaseURL, when
// set, replaces the public endpoint.
func NewClient(cfg config.AIConfig, log *slog.Logger, httpClient *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	apiCfg := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	if httpClient != nil {
		apiCfg.HTTPClient = httpClient
	}
	return &Client{
		api:             goopenai.NewClientWithConfig(apiCfg),
		model:           cfg.OpenAIModel,
		visionModel:     cfg.VisionModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		visionMaxTokens: cfg.VisionMaxTokens,
		logger:          log.With(slog.String("component", "openai_client")),
	}
}

// Complete implements ai.Provider.
func (c *Client) Complete(ctx context.Context, messages []ai.Message, opts ai.Options) (ai.Completion, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return ai.Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ai.Completion{}, ErrNoChoices
	}

	logger.FromContextOrDefault(ctx, c.logger).Debug("chat completion finished",
		slog.String("model", resp.Model),
		slog.Int("total_tokens", resp.Usage.TotalTokens))

	return ai.Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// DescribeImage implements ai.Provider using the vision model.
func (c *Client) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: c.visionMaxTokens,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: prompt},
				{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: imageURL},
				},
			},
		}},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	logger.FromContextOrDefault(ctx, c.logger).Info("image analyzed",
		slog.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(messages []ai.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
