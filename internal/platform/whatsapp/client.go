package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/sethvargo/go-retry"
)

// maxRetries is the number of extra attempts for 5xx, 429 and network errors.
const maxRetries = 2

// captionTypes are the media types whose messages may carry a caption.
var captionTypes = map[string]bool{"image": true, "video": true, "document": true}

// Media is a downloaded media file.
type Media struct {
	Data     []byte
	MimeType string
	Size     int64
}

// Client sends messages through the Cloud API.
type Client struct {
	baseURL       string
	phoneNumberID string
	token         string
	http          *http.Client
	logger        *slog.Logger
	retryBase     time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRetryBase sets the first backoff delay between retries.
func WithRetryBase(d time.Duration) Option {
	return func(cl *Client) { cl.retryBase = d }
}

// NewClient creates a client for the configured phone number.
func NewClient(cfg config.WhatsAppConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.APIURL, "/") + "/" + cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		http:          &http.Client{Timeout: 30 * time.Second},
		logger:        log.With(slog.String("component", "whatsapp_client")),
		retryBase:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryBase <= 0 {
		c.retryBase = time.Millisecond
	}
	return c
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a text message and returns its WhatsApp message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	id, err := c.send(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send text message: %w", err)
	}
	logger.FromContextOrDefault(ctx, c.logger).Info("message sent",
		slog.String("to", redact.Phone(to)),
		slog.String("whatsapp_message_id", id))
	return id, nil
}

// SendMedia sends previously uploaded media by id. The caption is dropped
// for types that do not support one.
func (c *Client) SendMedia(ctx context.Context, to, mediaType, mediaID, caption string) (string, error) {
	media := map[string]string{"id": mediaID}
	if caption != "" && captionTypes[mediaType] {
		media["caption"] = caption
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              mediaType,
		mediaType:           media,
	}
	id, err := c.send(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("failed to send %s message: %w", mediaType, err)
	}
	return id, nil
}

// MarkAsRead marks an inbound message as read.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.messagesURL(), body, "application/json")
	if err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// DownloadMedia resolves a media id to its URL and downloads the file.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) (*Media, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media url: %w", err)
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	err = json.NewDecoder(resp.Body).Decode(&meta)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s has no download url", mediaID)
	}

	resp, err = c.do(ctx, http.MethodGet, meta.URL, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = meta.MimeType
	}
	size := int64(len(data))
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && n > 0 {
		size = n
	}
	return &Media{Data: data, MimeType: mimeType, Size: size}, nil
}

func (c *Client) messagesURL() string {
	return c.baseURL + "/" + c.phoneNumberID + "/messages"
}

func (c *Client) send(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.messagesURL(), body, "application/json")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", ErrNoMessageID
	}
	return out.Messages[0].ID, nil
}

// do performs an authenticated request, retrying transient failures with
// exponential backoff. Any non-2xx response is returned as *APIError.
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) (*http.Response, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.retryBase))

	var resp *http.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		r, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn("whatsapp request failed, will retry", slog.String("error", redact.Error(err)))
			return retry.RetryableError(err)
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			data, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			_ = r.Body.Close()
			apiErr := &APIError{Status: r.StatusCode, Body: string(data)}
			if apiErr.Temporary() {
				log.Warn("whatsapp server error, will retry", slog.Int("status", r.StatusCode))
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}
		resp = r
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			log.Error("whatsapp API error",
				slog.Int("status", apiErr.Status),
				slog.String("body", redact.String(apiErr.Body)))
		}
		return nil, err
	}
	return resp, nil
}
