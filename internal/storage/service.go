package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// StoredFile describes an accepted upload.
type StoredFile struct {
	Key         string
	FileName    string
	ContentType string
	Size        int64
}

// Service validates uploads and writes them to a backend under generated keys.
type Service struct {
	backend Backend
	policy  UploadPolicy
	now     func() time.Time
}

func NewService(backend Backend, policy UploadPolicy) *Service {
	return &Service{backend: backend, policy: policy, now: time.Now}
}

func (s *Service) Policy() UploadPolicy { return s.policy }

// Store reads the upload, rejects it when the policy says so and otherwise saves it.
// At most MaxSize+1 bytes are buffered.
func (s *Service) Store(ctx context.Context, name string, r io.Reader) (*StoredFile, error) {
	name = sanitizeFilename(name)
	limit := s.policy.MaxSize
	if limit <= 0 {
		limit = DefaultMaxUploadSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := s.policy.Check(name, int64(len(data)), data); err != nil {
		return nil, err
	}

	contentType := mimetype.Detect(data).String()
	key := s.newKey(name)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, err
	}
	return &StoredFile{
		Key:         key,
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Open streams a stored file back.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Remove deletes a stored file; missing files are not an error.
func (s *Service) Remove(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *Service) BackendName() string { return s.backend.Name() }

// newKey builds attachments/<yyyy>/<mm>/<uuid><ext> so user-chosen names never reach
// the backend.
func (s *Service) newKey(name string) string {
	now := s.now().UTC()
	return fmt.Sprintf("attachments/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), extension(name))
}

// sanitizeFilename makes a filename safe for display and Content-Disposition headers.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	replacer := strings.NewReplacer(
		"\"", "_", "'", "_", "<", "_", ">", "_", ":", "_", ";", "_",
		"?", "_", "*", "_", "|", "_", "\r", "", "\n", "",
	)
	filename = strings.TrimSpace(replacer.Replace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return "upload"
	}
	return filename
}
