// Package loginlimit throttles repeated failed logins per username using a
// fixed window that starts at the first failure.
package loginlimit

import (
	"context"
	"time"
)

const (
	// DefaultMaxFailures is the number of failures tolerated per window
	DefaultMaxFailures = 5

	// DefaultWindow is the length of the failure window
	DefaultWindow = 15 * time.Minute
)

// Limiter tracks failed login attempts.
type Limiter interface {
	// Check returns a positive retry-after duration when key is locked out.
	Check(ctx context.Context, key string) (time.Duration, error)

	// Fail records one failed attempt for key.
	Fail(ctx context.Context, key string) error

	// Reset clears the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

// Key maps a username to its limiter key. Usernames are case-sensitive, so
// the key keeps the username as given.
func Key(username string) string {
	return "login:" + username
}

// Noop never locks anyone out
type Noop struct{}

func (Noop) Check(context.Context, string) (time.Duration, error) { return 0, nil }
func (Noop) Fail(context.Context, string) error                   { return nil }
func (Noop) Reset(context.Context, string) error                  { return nil }
