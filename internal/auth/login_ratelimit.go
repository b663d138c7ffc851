package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/itdesk-io/itdesk/internal/cache"
)

// Defaults for login throttling: five failures per client IP per hour.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLoginWindow      = time.Hour
)

// LoginRateLimiter counts failed logins per client IP in a fixed window. The window
// starts at the first failure and is not extended by later ones, so a blocked client is
// let back in once the hour that began with its first failure has passed.
type LoginRateLimiter struct {
	store       cache.CounterStore
	maxAttempts int64
	window      time.Duration
}

// NewLoginRateLimiter creates a limiter over store. Non-positive arguments select the
// defaults.
func NewLoginRateLimiter(store cache.CounterStore, maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &LoginRateLimiter{
		store:       store,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (rl *LoginRateLimiter) key(ip string) string {
	return "login_attempts:" + ip
}

// IsBlocked reports whether ip has used up its attempts for the current window.
func (rl *LoginRateLimiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := rl.store.Get(ctx, rl.key(ip))
	if err != nil {
		return false, fmt.Errorf("failed to read login attempts: %w", err)
	}
	return n >= rl.maxAttempts, nil
}

// Acquire reserves one attempt for ip before the credentials are checked. The
// increment is the gate, so concurrent requests can never get more than maxAttempts
// through in one window. It returns the attempts left after this one and whether it
// may proceed. A refused reservation is handed back straight away.
func (rl *LoginRateLimiter) Acquire(ctx context.Context, ip string) (int, bool, error) {
	n, err := rl.store.Increment(ctx, rl.key(ip), rl.window)
	if err != nil {
		return 0, false, fmt.Errorf("failed to record login attempt: %w", err)
	}
	if n > rl.maxAttempts {
		if err := rl.Release(ctx, ip); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return int(rl.maxAttempts - n), true, nil
}

// Release returns a reservation taken by Acquire. Successful logins release theirs so
// that only failures use up the window.
func (rl *LoginRateLimiter) Release(ctx context.Context, ip string) error {
	n, err := rl.store.IncrementBy(ctx, rl.key(ip), -1, rl.window)
	if err != nil {
		return fmt.Errorf("failed to release login attempt: %w", err)
	}
	// The window lapsed between Acquire and Release and a fresh counter went negative.
	if n < 0 {
		if _, err := rl.store.IncrementBy(ctx, rl.key(ip), -n, rl.window); err != nil {
			return fmt.Errorf("failed to release login attempt: %w", err)
		}
	}
	return nil
}

// Window is the length of the counting window.
func (rl *LoginRateLimiter) Window() time.Duration {
	return rl.window
}
