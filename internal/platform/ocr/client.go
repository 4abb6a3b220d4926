package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
)

const (
	defaultAPIURL   = "https://api.ocr.space/parse/image"
	defaultLanguage = "eng"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ocr api key is not configured")

	// ErrProcessing is returned when the service reports a processing error.
	ErrProcessing = errors.New("ocr processing failed")
)

// Result is the text found in an image.
type Result struct {
	Text       string
	Confidence float64
}

// Client calls OCR.space.
type Client struct {
	apiKey   string
	apiURL   string
	language string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a client from configuration. httpClient may be nil.
func NewClient(cfg config.OCRConfig, log *slog.Logger, httpClient *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		apiKey:   cfg.APIKey,
		apiURL:   cfg.APIURL,
		language: cfg.Language,
		http:     httpClient,
		logger:   log.With(slog.String("component", "ocr_client")),
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.language == "" {
		c.language = defaultLanguage
	}
	return c
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText      string          `json:"ParsedText"`
		TextOrientation json.RawMessage `json:"TextOrientation"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// ExtractText uploads the image at path and returns the recognised text.
// An image without text yields an empty Result and no error.
func (c *Client) ExtractText(ctx context.Context, path string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	body, contentType, err := c.buildForm(path)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("ocr request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrProcessing, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("failed to decode ocr response: %w", err)
	}
	if out.IsErroredOnProcessing {
		return Result{}, fmt.Errorf("%w: %v", ErrProcessing, out.ErrorMessage)
	}
	if len(out.ParsedResults) == 0 {
		return Result{}, nil
	}

	texts := make([]string, 0, len(out.ParsedResults))
	for _, r := range out.ParsedResults {
		texts = append(texts, r.ParsedText)
	}
	result := Result{
		Text:       strings.Join(texts, "\n"),
		Confidence: parseNumber(out.ParsedResults[0].TextOrientation),
	}

	logger.FromContextOrDefault(ctx, c.logger).Info("OCR extraction successful",
		slog.Int("text_length", len(result.Text)))
	return result, nil
}

func (c *Client) buildForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy image: %w", err)
	}

	fields := [][2]string{
		{"apikey", c.apiKey},
		{"language", c.language},
		{"isOverlayRequired", "false"},
		{"detectOrientation", "true"},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// parseNumber reads a JSON number or numeric string, defaulting to 0.
func parseNumber(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
