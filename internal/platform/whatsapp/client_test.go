package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/whatsapp-assistant/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.WhatsAppConfig{
		APIURL:        srv.URL,
		APIVersion:    "v18.0",
		PhoneNumberID: "12345",
		AccessToken:   "test-token",
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithRetryBase(time.Millisecond))
}

func TestClient_SendText(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))

	id, err := c.SendText(context.Background(), "15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "wamid.out", id)
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, map[string]any{"body": "hello"}, got["text"])
}

func TestClient_SendMedia_Caption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mediaType   string
		wantCaption bool
	}{
		{"image", true},
		{"video", true},
		{"document", true},
		{"audio", false},
	}

	for _, tc := range tests {
		t.Run(tc.mediaType, func(t *testing.T) {
			t.Parallel()
			var got map[string]any
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.m"}]}`))
			}))

			_, err := c.SendMedia(context.Background(), "1555", tc.mediaType, "media-1", "look")
			require.NoError(t, err)

			media, ok := got[tc.mediaType].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "media-1", media["id"])
			_, hasCaption := media["caption"]
			assert.Equal(t, tc.wantCaption, hasCaption)
		})
	}
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad recipient"}}`))
	}))

	_, err := c.SendText(context.Background(), "1555", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "bad recipient")
	assert.False(t, apiErr.Temporary())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.retry"}]}`))
	}))

	id, err := c.SendText(context.Background(), "1555", "hi")
	require.NoError(t, err)
	assert.Equal(t, "wamid.retry", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.MarkAsRead(context.Background(), "wamid.in")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_MarkAsRead(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	require.NoError(t, c.MarkAsRead(context.Background(), "wamid.in"))
	assert.Equal(t, "read", got["status"])
	assert.Equal(t, "wamid.in", got["message_id"])
}

func TestClient_DownloadMedia(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/v18.0/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"url":"` + srvURL + `/files/media-1","mime_type":"image/png"}`))
	})
	mux.HandleFunc("/files/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("binary-data"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c := NewClient(config.WhatsAppConfig{
		APIURL:      srv.URL,
		APIVersion:  "v18.0",
		AccessToken: "test-token",
	}, nil)

	media, err := c.DownloadMedia(context.Background(), "media-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("binary-data"), media.Data)
	assert.Equal(t, "image/jpeg", media.MimeType)
	assert.Equal(t, int64(len("binary-data")), media.Size)
}
