// Package imageenc turns uploaded image files into data URIs, shrinking
// oversized photos on the way.
package imageenc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

const (
	DefaultMaxBytes     = 10 << 20
	DefaultMaxDimension = 1600
	jpegQuality         = 85
)

var (
	ErrTooLarge = errors.New("file exceeds upload limit")
	ErrNotImage = errors.New("file is not an image")
)

type Encoder struct {
	maxBytes     int64
	maxDimension int
}

func New(maxBytes int64, maxDimension int) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Encoder{maxBytes: maxBytes, maxDimension: maxDimension}
}

// Encode reads body and returns it as a base64 data URI. Images whose longer
// side exceeds the configured dimension are resized; formats the decoder does
// not know are passed through untouched.
func (e *Encoder) Encode(ctx context.Context, contentType string, body io.Reader) (domain.DataURI, error) {
	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, e.maxBytes)
	}
	if len(raw) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mediaType := resolveMediaType(contentType, raw)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mediaType)
	}

	out, outType := e.shrink(raw, mediaType)
	return domain.DataURI("data:" + outType + ";base64," + base64.StdEncoding.EncodeToString(out)), nil
}

func (e *Encoder) shrink(raw []byte, mediaType string) ([]byte, string) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return raw, mediaType
	}
	if cfg.Width <= e.maxDimension && cfg.Height <= e.maxDimension {
		return raw, mediaType
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		slog.Warn("image_decode_failed", "format", format, "error", err)
		return raw, mediaType
	}
	resized := imaging.Fit(img, e.maxDimension, e.maxDimension, imaging.Lanczos)

	target, targetType := imaging.JPEG, "image/jpeg"
	if format == "png" {
		target, targetType = imaging.PNG, "image/png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, target, imaging.JPEGQuality(jpegQuality)); err != nil {
		slog.Warn("image_encode_failed", "format", format, "error", err)
		return raw, mediaType
	}

	slog.Debug("image_resized",
		"from", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"to", fmt.Sprintf("%dx%d", resized.Bounds().Dx(), resized.Bounds().Dy()),
		"bytes_in", len(raw),
		"bytes_out", buf.Len(),
	)
	return buf.Bytes(), targetType
}

func resolveMediaType(declared string, raw []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(raw))
	return mt
}
