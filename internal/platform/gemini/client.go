package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

const (
	maxRetries    = 2
	maxImageBytes = 20 << 20
)

// Client is an ai.Provider backed by Gemini.
type Client struct {
	client          *genai.Client
	http            *http.Client
	model           string
	temperature     float32
	maxTokens       int
	visionMaxTokens int
	retryBase       time.Duration
	logger          *slog.Logger
}

var _ ai.Provider = (*Client)(nil)

type options struct {
	httpClient *http.Client
	baseURL    string
	retryBase  time.Duration
}

// Option customises a Client.
type Option func(*options)

// WithHTTPClient sets the client used for API calls and image downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithRetryBase sets the first backoff delay between retries.
func WithRetryBase(d time.Duration) Option {
	return func(o *options) { o.retryBase = d }
}

// NewClient creates a Gemini client from the AI configuration.
func NewClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.GeminiModel == "" {
		return nil, errors.New("gemini model cannot be empty")
	}

	o := options{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retryBase:  time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retryBase <= 0 {
		o.retryBase = time.Millisecond
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cc.HTTPOptions.BaseURL = o.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:          client,
		http:            o.httpClient,
		model:           cfg.GeminiModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		visionMaxTokens: cfg.VisionMaxTokens,
		retryBase:       o.retryBase,
		logger:          log.With(slog.String("component", "gemini_client")),
	}, nil
}

// Complete implements ai.Provider. System messages become the system
// instruction and assistant turns are sent with the model role.
func (c *Client) Complete(ctx context.Context, messages []ai.Message, opts ai.Options) (ai.Completion, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			system = append(system, m.Content)
		case ai.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := c.generateConfig(c.maxTokens)
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.generate(ctx, contents, cfg)
	if err != nil {
		return ai.Completion{}, err
	}

	out := ai.Completion{Content: resp.Text(), Model: resp.ModelVersion}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = ai.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// DescribeImage implements ai.Provider. The image is sent inline.
func (c *Client) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	data, mimeType, err := c.loadImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)}

	resp, err := c.generate(ctx, contents, c.generateConfig(c.visionMaxTokens))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *Client) generateConfig(maxTokens int) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: int32(maxTokens),
	}
}

// generate calls GenerateContent, retrying 5xx and 429 responses.
func (c *Client) generate(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.retryBase))

	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) && (apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests) {
				log.Warn("gemini API call failed, will retry",
					slog.Int("status", apiErr.Code),
					slog.String("error", redact.Error(err)))
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoCandidates
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	return resp, nil
}

// loadImage decodes a data: URL or downloads an http(s) URL.
func (c *Client) loadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(imageURL, "data:"); ok {
		meta, encoded, found := strings.Cut(rest, ",")
		mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
		if !found || !isBase64 || mimeType == "" {
			return nil, "", fmt.Errorf("%w: unsupported data url", ErrInvalidImageURL)
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
		}
		return data, mimeType, nil
	}

	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, "", fmt.Errorf("%w: unsupported scheme", ErrInvalidImageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
