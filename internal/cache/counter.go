package cache

import (
	"context"
	"time"
)

// CounterStore is an atomic increment-with-expiry primitive keyed by string. The expiry
// window starts with the first increment of a key and later increments do not extend it.
type CounterStore interface {
	// Increment adds one to key and returns the new count.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// IncrementBy adds n to key and returns the new count.
	IncrementBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)
	// Get returns the current count, zero when the key is absent or expired.
	Get(ctx context.Context, key string) (int64, error)
}
