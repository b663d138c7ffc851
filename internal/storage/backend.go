package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by backends for unknown keys.
var ErrObjectNotFound = errors.New("stored object not found")

// Backend persists file bytes under slash-separated keys.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Name identifies the backend in logs.
	Name() string
}
