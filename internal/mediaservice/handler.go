package mediaservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoFile          = errors.New("no file found")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrInvalidKey      = errors.New("invalid upload key")
)

func NewMediaService(store BlobStore, maxBytes int64, logger *slog.Logger) *MediaService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &MediaService{store: store, maxBytes: maxBytes, logger: logger}
}

func (s *MediaService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates the file, normalises images and hands the result to the blob store.
// Images go under images/ and audio under audios/.
func (s *MediaService) Upload(ctx context.Context, header *multipart.FileHeader) (*UploadResult, error) {
	if header == nil {
		return nil, ErrNoFile
	}

	if header.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return s.save(ctx, f, header.Filename)
}

// save reads at most maxBytes from r; the multipart Size field is not trusted.
func (s *MediaService) save(ctx context.Context, r io.Reader, filename string) (*UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrNoFile
	}

	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	contentType := detectContentType(data, filename)
	mt, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	if mt.format != "" {
		data, err = normaliseImage(data, mt.format)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, err)
		}
	}

	key := fmt.Sprintf("%s/%s-%s", mt.folder, uuid.New().String(), sanitizeFilename(filename, contentType))

	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	s.logger.Info("file uploaded", slog.String("key", key), slog.String("content_type", contentType), slog.Int("size", len(data)))

	return &UploadResult{URL: url, Key: key, Kind: mt.kind, ContentType: contentType, Size: int64(len(data))}, nil
}

// Delete removes a previously uploaded file.
func (s *MediaService) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	return s.store.Delete(ctx, key)
}

func validKey(key string) bool {
	folder, name, ok := strings.Cut(key, "/")
	if !ok || (folder != "images" && folder != "audios") {
		return false
	}

	return name != "" && !strings.ContainsAny(name, "/\\") && name != "." && name != ".."
}
