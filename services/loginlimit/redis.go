package loginlimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var failScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter shares failure counters between replicas through Redis.
type RedisLimiter struct {
	client      redis.UniversalClient
	prefix      string
	maxFailures int64
	window      time.Duration
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client redis.UniversalClient, maxFailures int, window time.Duration) *RedisLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client:      client,
		prefix:      "authgw:",
		maxFailures: int64(maxFailures),
		window:      window,
	}
}

// NewRedisClient builds a client and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Check implements Limiter
func (l *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	k := l.prefix + key
	n, err := l.client.Get(ctx, k).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read login failures: %w", err)
	}
	if n < l.maxFailures {
		return 0, nil
	}
	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read login window: %w", err)
	}
	if ttl <= 0 {
		return l.window, nil
	}
	return ttl, nil
}

// Fail implements Limiter
func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	if err := failScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// Reset implements Limiter
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
