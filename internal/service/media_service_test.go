package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/ocr"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/whatsapp"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMediaService(f *fixture) *service.MediaServiceImpl {
	return service.NewMediaService(f.media, f.whatsapp, f.storage, f.ocr, f.assistant(), f.emitter, testLogger())
}

func inboundMessage(t *testing.T, msgType domain.MessageType) *domain.Message {
	t.Helper()
	m, err := domain.NewMessage(uuid.New(), uuid.New(), domain.DirectionInbound, msgType, "", domain.MessageStatusDelivered)
	require.NoError(t, err)
	return m
}

func serveMedia(f *fixture, data []byte, mimeType string) {
	f.whatsapp.DownloadMediaFn = func(ctx context.Context, id string) (*whatsapp.Media, error) {
		return &whatsapp.Media{Data: data, MimeType: mimeType, Size: int64(len(data))}, nil
	}
}

// storedImage saves an image through the mock storage and records it.
func storedImage(t *testing.T, f *fixture, mimeType string) *domain.Media {
	t.Helper()
	path, filename, err := f.storage.Save([]byte("png-bytes"), mimeType)
	require.NoError(t, err)
	m := &domain.Media{
		ID:         uuid.New(),
		MessageID:  uuid.New(),
		UserID:     uuid.New(),
		SessionID:  uuid.New(),
		Type:       domain.MediaTypeImage,
		StoredPath: path,
		Filename:   filename,
		MimeType:   mimeType,
		Metadata:   map[string]any{},
	}
	require.NoError(t, f.media.Create(context.Background(), m))
	return m
}

func TestMediaService_DownloadAndSave(t *testing.T) {
	t.Run("image is stored, thumbnailed and queued", func(t *testing.T) {
		f := newFixture()
		serveMedia(f, []byte("jpeg-bytes"), "image/jpeg")
		svc := newMediaService(f)
		msg := inboundMessage(t, domain.MessageTypeImage)

		media, err := svc.DownloadAndSave(context.Background(), "wa-media-1", msg)
		require.NoError(t, err)

		assert.Equal(t, msg.ID, media.MessageID)
		assert.Equal(t, msg.SessionID, media.SessionID)
		assert.Equal(t, domain.MediaTypeImage, media.Type)
		assert.Equal(t, int64(len("jpeg-bytes")), media.Size)
		assert.Equal(t, "wa-media-1", media.Metadata["whatsappMediaId"])
		assert.Equal(t, media.StoredPath+"_thumb", media.Metadata["thumbnailPath"])
		assert.Equal(t, []byte("jpeg-bytes"), f.storage.Files[media.StoredPath])
		require.Len(t, f.media.Media, 1)

		emitted := f.emitter.emitted()
		require.Len(t, emitted, 1)
		assert.Equal(t, task.QueueMediaProcessing, emitted[0].Queue)
		assert.Equal(t, service.TaskProcessMedia, emitted[0].Type)
		var payload service.MediaTaskPayload
		require.NoError(t, emitted[0].UnmarshalPayload(&payload))
		assert.Equal(t, media.ID, payload.MediaID)
		assert.Equal(t, media.UserID, payload.UserID)
	})

	t.Run("document is stored without processing", func(t *testing.T) {
		f := newFixture()
		serveMedia(f, []byte("%PDF"), "application/pdf")
		svc := newMediaService(f)

		media, err := svc.DownloadAndSave(context.Background(), "wa-doc", inboundMessage(t, domain.MessageTypeDocument))
		require.NoError(t, err)
		assert.Equal(t, domain.MediaTypeDocument, media.Type)
		assert.NotContains(t, media.Metadata, "thumbnailPath")
		assert.Empty(t, f.emitter.emitted())
	})

	t.Run("thumbnail failure is tolerated", func(t *testing.T) {
		f := newFixture()
		serveMedia(f, []byte("jpeg"), "image/jpeg")
		f.storage.ThumbnailErr = errors.New("decode failed")
		svc := newMediaService(f)

		media, err := svc.DownloadAndSave(context.Background(), "wa", inboundMessage(t, domain.MessageTypeImage))
		require.NoError(t, err)
		assert.NotContains(t, media.Metadata, "thumbnailPath")
		assert.Len(t, f.emitter.emitted(), 1)
	})

	t.Run("queue failure still returns the media", func(t *testing.T) {
		f := newFixture()
		serveMedia(f, []byte("jpeg"), "image/jpeg")
		f.emitter.err = task.ErrQueueFull
		svc := newMediaService(f)

		media, err := svc.DownloadAndSave(context.Background(), "wa", inboundMessage(t, domain.MessageTypeImage))
		require.NoError(t, err)
		assert.NotNil(t, media)
	})

	t.Run("download failure", func(t *testing.T) {
		f := newFixture()
		svc := newMediaService(f)

		_, err := svc.DownloadAndSave(context.Background(), "wa", inboundMessage(t, domain.MessageTypeImage))
		require.Error(t, err)
		assert.Empty(t, f.media.Media)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newFixture()
		serveMedia(f, []byte("jpeg"), "image/jpeg")
		f.storage.SaveErr = errors.New("disk full")
		svc := newMediaService(f)

		_, err := svc.DownloadAndSave(context.Background(), "wa", inboundMessage(t, domain.MessageTypeImage))
		require.Error(t, err)
		assert.Empty(t, f.media.Media)
	})
}

func TestMediaService_ProcessMedia(t *testing.T) {
	t.Run("OCR text and classification", func(t *testing.T) {
		f := newFixture()
		f.ocr.Result = ocr.Result{Text: "panic: nil map", Confidence: 0.93}
		f.provider.Description = " Error_Screenshot. "
		svc := newMediaService(f)
		stored := storedImage(t, f, "image/png")

		media, err := svc.ProcessMedia(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "panic: nil map", media.ExtractedText)
		assert.Equal(t, domain.ClassErrorScreenshot, media.Classification)
		assert.Equal(t, 0.93, media.Metadata["ocrConfidence"])
		assert.NotEmpty(t, media.Metadata["processedAt"])
		assert.True(t, media.IsProcessed)

		require.Len(t, f.provider.Images, 1)
		assert.True(t, strings.HasPrefix(f.provider.Images[0], "data:image/png;base64,"))
	})

	t.Run("OCR failure falls back to the vision model", func(t *testing.T) {
		f := newFixture()
		f.ocr.Err = errors.New("ocr unavailable")
		f.provider.DescribeFn = func(ctx context.Context, imageURL, prompt string) (string, error) {
			if prompt == ai.TextExtractionPrompt {
				return "whiteboard notes", nil
			}
			return "note", nil
		}
		svc := newMediaService(f)
		stored := storedImage(t, f, "")

		media, err := svc.ProcessMedia(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, "whiteboard notes", media.ExtractedText)
		assert.Equal(t, service.AIExtractionConfidence, media.Metadata["ocrConfidence"])
		assert.Equal(t, domain.ClassNote, media.Classification)
		assert.True(t, strings.HasPrefix(f.provider.Images[0], "data:image/jpeg;base64,"))
	})

	t.Run("image without text does not fall back", func(t *testing.T) {
		f := newFixture()
		f.ocr.Result = ocr.Result{}
		f.provider.Description = "note"
		svc := newMediaService(f)
		stored := storedImage(t, f, "image/png")

		media, err := svc.ProcessMedia(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Empty(t, media.ExtractedText)
		assert.Equal(t, float64(0), media.Metadata["ocrConfidence"])
		// Only the classification call reaches the vision model.
		assert.Len(t, f.provider.Images, 1)
		assert.True(t, media.IsProcessed)
	})

	t.Run("total failure still marks the media processed", func(t *testing.T) {
		f := newFixture()
		f.ocr.Err = errors.New("ocr unavailable")
		f.provider.Err = errors.New("model down")
		svc := newMediaService(f)
		stored := storedImage(t, f, "image/png")

		media, err := svc.ProcessMedia(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Empty(t, media.ExtractedText)
		assert.Equal(t, float64(0), media.Metadata["ocrConfidence"])
		assert.Equal(t, domain.ClassOther, media.Classification)
		assert.True(t, media.IsProcessed)
	})

	t.Run("unknown media is skipped", func(t *testing.T) {
		f := newFixture()
		svc := newMediaService(f)
		media, err := svc.ProcessMedia(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, media)
	})

	t.Run("non-image media is skipped", func(t *testing.T) {
		f := newFixture()
		svc := newMediaService(f)
		doc := storedImage(t, f, "application/pdf")
		doc.Type = domain.MediaTypeDocument

		media, err := svc.ProcessMedia(context.Background(), doc.ID)
		require.NoError(t, err)
		assert.Nil(t, media)
		assert.Zero(t, f.ocr.Calls)
		assert.False(t, doc.IsProcessed)
	})
}

func TestMediaService_Handle(t *testing.T) {
	f := newFixture()
	f.ocr.Result = ocr.Result{Text: "hello", Confidence: 0.9}
	f.provider.Description = "document"
	svc := newMediaService(f)
	stored := storedImage(t, f, "image/png")

	job, err := task.New(uuid.New(), task.QueueMediaProcessing, service.TaskProcessMedia,
		service.MediaTaskPayload{MediaID: stored.ID}, 3)
	require.NoError(t, err)

	result, err := svc.Handle(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true, "mediaId": stored.ID}, result)
	assert.True(t, stored.IsProcessed)
	assert.Equal(t, domain.ClassDocument, stored.Classification)
}
