package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/itdesk-io/itdesk/internal/cache"
)

const (
	DefaultUploadQuota       = 50
	DefaultUploadQuotaWindow = 24 * time.Hour
)

// UploadQuota caps the number of files one client IP may upload per fixed window.
type UploadQuota struct {
	store  cache.CounterStore
	limit  int64
	window time.Duration
}

func NewUploadQuota(store cache.CounterStore, limit int, window time.Duration) *UploadQuota {
	if limit <= 0 {
		limit = DefaultUploadQuota
	}
	if window <= 0 {
		window = DefaultUploadQuotaWindow
	}
	return &UploadQuota{store: store, limit: int64(limit), window: window}
}

func (q *UploadQuota) key(ip string) string {
	return "file_uploads:" + ip
}

// Exceeded reports whether ip has already uploaded its allowance.
func (q *UploadQuota) Exceeded(ctx context.Context, ip string) (bool, error) {
	n, err := q.store.Get(ctx, q.key(ip))
	if err != nil {
		return false, fmt.Errorf("failed to read upload count: %w", err)
	}
	return n >= q.limit, nil
}

// Record adds files to ip's count for the current window.
func (q *UploadQuota) Record(ctx context.Context, ip string, files int) error {
	if files <= 0 {
		return nil
	}
	if _, err := q.store.IncrementBy(ctx, q.key(ip), int64(files), q.window); err != nil {
		return fmt.Errorf("failed to record uploads: %w", err)
	}
	return nil
}
