package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/ai"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/events"
	"github.com/phrazzld/whatsapp-assistant/internal/platform/logger"
	"github.com/phrazzld/whatsapp-assistant/internal/redact"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/phrazzld/whatsapp-assistant/internal/task"
)

// AIExtractionConfidence is reported when OCR failed and the vision model
// transcribed the image instead.
const AIExtractionConfidence = 0.8

// MediaTaskPayload is the payload of a media-processing task.
type MediaTaskPayload struct {
	MediaID uuid.UUID `json:"mediaId"`
	UserID  uuid.UUID `json:"userId"`
}

// MediaService stores inbound media and enriches images with OCR text and
// a classification.
type MediaService interface {
	// DownloadAndSave fetches WhatsApp media, stores it for msg and queues
	// images for processing.
	DownloadAndSave(ctx context.Context, whatsappMediaID string, msg *domain.Message) (*domain.Media, error)

	// ProcessMedia runs OCR and classification. Unknown ids and non-image
	// media are skipped and return nil.
	ProcessMedia(ctx context.Context, mediaID uuid.UUID) (*domain.Media, error)
}

// MediaServiceImpl implements MediaService and is the media-processing
// queue handler.
type MediaServiceImpl struct {
	media     store.MediaStore
	whatsapp  WhatsAppClient
	storage   MediaStorage
	extractor TextExtractor
	assistant *ai.Service
	emitter   events.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
}

// NewMediaService creates a MediaService.
func NewMediaService(
	media store.MediaStore,
	whatsapp WhatsAppClient,
	storage MediaStorage,
	extractor TextExtractor,
	assistant *ai.Service,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *MediaServiceImpl {
	return &MediaServiceImpl{
		media:     media,
		whatsapp:  whatsapp,
		storage:   storage,
		extractor: extractor,
		assistant: assistant,
		emitter:   emitter,
		logger:    logger.With("component", "media_service"),
		now:       time.Now,
	}
}

func (s *MediaServiceImpl) DownloadAndSave(
	ctx context.Context,
	whatsappMediaID string,
	msg *domain.Message,
) (*domain.Media, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	file, err := s.whatsapp.DownloadMedia(ctx, whatsappMediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}

	path, filename, err := s.storage.Save(file.Data, file.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	now := s.now().UTC()
	media := &domain.Media{
		ID:         uuid.New(),
		MessageID:  msg.ID,
		UserID:     msg.UserID,
		SessionID:  msg.SessionID,
		Type:       domain.MediaType(msg.Type),
		StoredPath: path,
		Filename:   filename,
		MimeType:   file.MimeType,
		Size:       file.Size,
		Metadata:   map[string]any{"whatsappMediaId": whatsappMediaID},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := media.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if media.IsImage() {
		thumb, err := s.storage.Thumbnail(path)
		if err != nil {
			log.Warn("failed to create thumbnail", "error", err, "path", path)
		} else {
			media.Metadata["thumbnailPath"] = thumb
		}
	}

	if err := s.media.Create(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to save media record: %w", err)
	}
	log.Info("media saved", "media_id", media.ID, "filename", filename, "size", media.Size)

	if media.IsImage() {
		jobID, err := emitTask(ctx, s.emitter, task.QueueMediaProcessing, TaskProcessMedia,
			MediaTaskPayload{MediaID: media.ID, UserID: media.UserID})
		if err != nil {
			log.Error("failed to queue media processing", "error", err, "media_id", media.ID)
		} else {
			log.Debug("media processing queued", "media_id", media.ID, "job_id", jobID)
		}
	}
	return media, nil
}

func (s *MediaServiceImpl) ProcessMedia(ctx context.Context, mediaID uuid.UUID) (*domain.Media, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("media_id", mediaID)

	media, err := s.media.GetByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			log.Warn("media not found, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load media: %w", err)
	}
	if !media.IsImage() {
		log.Debug("media is not an image, skipping", "type", media.Type)
		return nil, nil
	}

	text, confidence := s.extractText(ctx, media)
	classification := s.classify(ctx, media)

	if media.Metadata == nil {
		media.Metadata = map[string]any{}
	}
	now := s.now().UTC()
	media.ExtractedText = text
	media.Classification = classification
	media.Metadata["ocrConfidence"] = confidence
	media.Metadata["processedAt"] = now.Format(time.RFC3339)
	media.IsProcessed = true
	media.UpdatedAt = now

	if err := s.media.Update(ctx, media); err != nil {
		return nil, fmt.Errorf("failed to update media: %w", err)
	}

	log.Info("media processed",
		"classification", classification,
		"text_length", len(text))
	return media, nil
}

// Handle implements task.Handler for the media-processing queue.
func (s *MediaServiceImpl) Handle(ctx context.Context, t *task.Task) (any, error) {
	var payload MediaTaskPayload
	if err := t.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	if _, err := s.ProcessMedia(ctx, payload.MediaID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "mediaId": payload.MediaID}, nil
}

// extractText prefers OCR and falls back to the vision model when OCR
// fails. Total failure yields empty text with zero confidence.
func (s *MediaServiceImpl) extractText(ctx context.Context, media *domain.Media) (string, float64) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.extractor != nil {
		res, err := s.extractor.ExtractText(ctx, media.StoredPath)
		if err == nil {
			return res.Text, res.Confidence
		}
		log.Warn("OCR failed, falling back to AI extraction", "error", redact.Error(err))
	}

	url, err := s.dataURL(media)
	if err != nil {
		log.Error("failed to read media for AI extraction", "error", err)
		return "", 0
	}
	text, err := s.assistant.AnalyzeImage(ctx, url, ai.TextExtractionPrompt)
	if err != nil {
		log.Error("AI text extraction failed", "error", redact.Error(err))
		return "", 0
	}
	return text, AIExtractionConfidence
}

func (s *MediaServiceImpl) classify(ctx context.Context, media *domain.Media) string {
	url, err := s.dataURL(media)
	if err != nil {
		return domain.ClassOther
	}
	out, err := s.assistant.AnalyzeImage(ctx, url, ai.ImageClassificationPrompt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("image classification failed",
			"error", redact.Error(err))
		return domain.ClassOther
	}
	return domain.NormalizeClassification(out)
}

// dataURL inlines the stored file as a base64 data URL.
func (s *MediaServiceImpl) dataURL(media *domain.Media) (string, error) {
	data, err := s.storage.Read(media.StoredPath)
	if err != nil {
		return "", err
	}
	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

var (
	_ MediaService = (*MediaServiceImpl)(nil)
	_ task.Handler = (*MediaServiceImpl)(nil)
)
