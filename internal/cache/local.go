package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCounterStore keeps counters in process memory. Expired entries are dropped
// lazily when touched and by Prune.
type LocalCounterStore struct {
	mu    sync.Mutex
	items map[string]*localCounter
	now   func() time.Time
}

type localCounter struct {
	value     int64
	expiresAt time.Time
}

// NewLocalCounterStore creates an empty store using the wall clock.
func NewLocalCounterStore() *LocalCounterStore {
	return NewLocalCounterStoreWithClock(time.Now)
}

// NewLocalCounterStoreWithClock lets tests control expiry.
func NewLocalCounterStoreWithClock(now func() time.Time) *LocalCounterStore {
	return &LocalCounterStore{
		items: make(map[string]*localCounter),
		now:   now,
	}
}

func (s *LocalCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.IncrementBy(ctx, key, 1, ttl)
}

func (s *LocalCounterStore) IncrementBy(_ context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	item, ok := s.items[key]
	if !ok || !now.Before(item.expiresAt) {
		item = &localCounter{expiresAt: now.Add(ttl)}
		s.items[key] = item
	}
	item.value += n
	return item.value, nil
}

func (s *LocalCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return 0, nil
	}
	return item.value, nil
}

// Prune removes expired counters and returns how many were dropped.
func (s *LocalCounterStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys, expired or not.
func (s *LocalCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
