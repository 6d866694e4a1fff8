package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"time"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/storage"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Bounding box for signatures embedded into documents, in pixels.
const (
	signatureMaxWidth  = 320
	signatureMaxHeight = 120
)

// SignatureConfig holds retry settings for SignatureFetcher.
type SignatureConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// SignatureFetcher loads signature images from object storage, retrying
// transient failures with a fixed delay.
type SignatureFetcher struct {
	storage     storage.ObjectStorage
	maxAttempts int
	retryDelay  time.Duration
}

// NewSignatureFetcher creates a SignatureFetcher.
func NewSignatureFetcher(objectStorage storage.ObjectStorage, cfg SignatureConfig) *SignatureFetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &SignatureFetcher{
		storage:     objectStorage,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
	}
}

// Fetch downloads and decodes the signature stored at url.
// Each attempt checks existence, then downloads and decodes. After the last
// failed attempt an UpstreamStorageError is returned. Cancellation of ctx
// stops both the attempts and the wait between them.
func (f *SignatureFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	key, err := f.storage.KeyFromURL(url)
	if err != nil {
		return nil, domain.NewUpstreamStorageError(err, "cannot derive signature key")
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		img, err := f.fetchOnce(ctx, key)
		if err == nil {
			if attempt > 1 {
				logger.With(logger.Fields{logger.FieldAttempt: attempt}).Info(ctx, "Signature %s fetched after retry", key)
			}
			return img, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err

		logger.With(logger.Fields{logger.FieldAttempt: attempt}).Warn(ctx, "Signature fetch attempt failed: %v", err)

		if attempt == f.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.retryDelay):
		}
	}

	return nil, domain.NewUpstreamStorageError(lastErr, "signature fetch failed after %d attempts", f.maxAttempts)
}

func (f *SignatureFetcher) fetchOnce(ctx context.Context, key string) (image.Image, error) {
	exists, err := f.storage.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}

	rc, err := f.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature image: %w", err)
	}
	return img, nil
}

// EncodeSignature scales img down to fit the signature box and encodes it as PNG.
// Smaller images are kept at their size.
func EncodeSignature(img image.Image) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("signature image is empty")
	}

	scale := 1.0
	if sx := float64(signatureMaxWidth) / float64(w); sx < scale {
		scale = sx
	}
	if sy := float64(signatureMaxHeight) / float64(h); sy < scale {
		scale = sy
	}

	out := img
	if scale < 1 {
		nw := max(1, int(float64(w)*scale))
		nh := max(1, int(float64(h)*scale))
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}
	return buf.Bytes(), nil
}
