package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/errs"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/utils"
)

const (
	thumbnailWidth = 320

	// DefaultMaxThumbnailPixels caps the decoded size of images we resize.
	DefaultMaxThumbnailPixels = 40_000_000
)

// ObjectStore puts bytes under key and returns the URL they are served from.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Recorder persists upload metadata.
type Recorder interface {
	Insert(ctx context.Context, m *Media) error
}

type UploaderOptions struct {
	MaxBytes   int64
	Thumbnails bool
	// MaxThumbnailPixels bounds width*height of images that get a thumbnail.
	// Larger images are stored as is. Zero means DefaultMaxThumbnailPixels.
	MaxThumbnailPixels int64
}

type Uploader struct {
	store    ObjectStore
	recorder Recorder
	opts     UploaderOptions
	log      *zap.Logger
}

// NewUploader builds an Uploader. recorder may be nil.
func NewUploader(store ObjectStore, recorder Recorder, opts UploaderOptions, logger *zap.Logger) *Uploader {
	if opts.MaxThumbnailPixels <= 0 {
		opts.MaxThumbnailPixels = DefaultMaxThumbnailPixels
	}
	return &Uploader{store: store, recorder: recorder, opts: opts, log: logger}
}

// UploadImage stores an inline image payload and returns its public URL.
func (u *Uploader) UploadImage(ctx context.Context, ownerID, payload string) (string, error) {
	data, _, err := DecodeDataURI(payload)
	if err != nil {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return "", err
	}
	if u.opts.MaxBytes > 0 && int64(len(data)) > u.opts.MaxBytes {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: image exceeds %d bytes", errs.ErrInvalidInput, u.opts.MaxBytes)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("%w: payload is %s, not an image", errs.ErrInvalidInput, mt.String())
	}

	id := utils.NewID()
	key := ownerID + "/" + id + mt.Extension()
	url, err := u.store.Upload(ctx, key, mt.String(), data)
	if err != nil {
		metrics.Uploads.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: upload image: %v", errs.ErrUpstream, err)
	}

	var thumbURL string
	if u.opts.Thumbnails {
		thumbURL = u.uploadThumbnail(ctx, key, data)
	}

	if u.recorder != nil {
		rec := &Media{
			ID:          id,
			OwnerID:     ownerID,
			Key:         key,
			URL:         url,
			Thumbnail:   thumbURL,
			Type:        "image",
			Size:        int64(len(data)),
			ContentType: mt.String(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := u.recorder.Insert(ctx, rec); err != nil {
			u.log.Warn("media record insert failed", zap.String("key", key), zap.Error(err))
		}
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	return url, nil
}

// uploadThumbnail stores a JPEG thumbnail next to key and returns its URL,
// or "" when no thumbnail was made.
func (u *Uploader) uploadThumbnail(ctx context.Context, key string, data []byte) string {
	thumb, err := generateThumbnail(data, u.opts.MaxThumbnailPixels)
	if err != nil {
		u.log.Debug("thumbnail skipped", zap.String("key", key), zap.Error(err))
		return ""
	}
	thumbKey := key + "_thumb.jpg"
	thumbURL, err := u.store.Upload(ctx, thumbKey, "image/jpeg", thumb)
	if err != nil {
		u.log.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
		return ""
	}
	return thumbURL
}

// generateThumbnail reads the header first and refuses to decode images
// above maxPixels.
func generateThumbnail(data []byte, maxPixels int64) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
