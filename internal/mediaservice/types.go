package mediaservice

import (
	"context"
	"io"
	"log/slog"
)

const (
	DefaultMaxBytes = 20 << 20
	MaxImageWidth   = 1600
)

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// BlobStore saves uploaded files and returns the public URL they can be fetched from.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker) (string, error)
	Delete(ctx context.Context, key string) error
}

type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Kind        Kind   `json:"kind"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type MediaService struct {
	store    BlobStore
	maxBytes int64
	logger   *slog.Logger
}

type mediaType struct {
	kind   Kind
	folder string
	// format is set for images that are decoded and re-encoded before storing.
	// GIF and WebP are stored as uploaded so animations survive.
	format string
}

var allowedTypes = map[string]mediaType{
	"image/jpeg": {kind: KindImage, folder: "images", format: "jpeg"},
	"image/png":  {kind: KindImage, folder: "images", format: "png"},
	"image/gif":  {kind: KindImage, folder: "images"},
	"image/webp": {kind: KindImage, folder: "images"},
	"audio/mpeg": {kind: KindAudio, folder: "audios"},
	"audio/wav":  {kind: KindAudio, folder: "audios"},
	"audio/ogg":  {kind: KindAudio, folder: "audios"},
	"audio/mp4":  {kind: KindAudio, folder: "audios"},
}
