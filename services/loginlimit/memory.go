package loginlimit

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLimiter keeps failure counters in a go-cache instance, so counts are
// local to one process.
type MemoryLimiter struct {
	counts      *cache.Cache
	maxFailures int
	window      time.Duration
}

// NewMemoryLimiter creates a limiter allowing maxFailures per window
func NewMemoryLimiter(maxFailures int, window time.Duration) *MemoryLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		counts:      cache.New(window, 2*window),
		maxFailures: maxFailures,
		window:      window,
	}
}

// Check implements Limiter
func (l *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	v, expiresAt, ok := l.counts.GetWithExpiration(key)
	if !ok {
		return 0, nil
	}
	if n, _ := v.(int); n < l.maxFailures {
		return 0, nil
	}
	retry := time.Until(expiresAt)
	if retry <= 0 {
		return 0, nil
	}
	return retry, nil
}

// Fail implements Limiter. The window expiry is set by the first failure
// and is not extended by later ones.
func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	if err := l.counts.Add(key, 1, l.window); err == nil {
		return nil
	}
	if _, err := l.counts.IncrementInt(key, 1); err != nil {
		// The entry expired between Add and IncrementInt.
		l.counts.Set(key, 1, l.window)
	}
	return nil
}

// Reset implements Limiter
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.counts.Delete(key)
	return nil
}
