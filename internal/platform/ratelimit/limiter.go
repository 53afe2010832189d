// Package ratelimit throttles requests with a fixed window counter kept in Redis,
// so every API replica shares the same budget per key.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/go-redis/redis/v8"
)

const keyPrefix = "wallet:ratelimit:"

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed window limiter
type Limiter struct {
	client   redis.Cmdable
	requests int
	window   time.Duration
}

// NewLimiter allows cfg.Requests calls per cfg.Window for each key
func NewLimiter(client redis.Cmdable, cfg *config.RateLimitConfig) *Limiter {
	return &Limiter{
		client:   client,
		requests: cfg.Requests,
		window:   cfg.Window,
	}
}

// Allow counts one call for key in the current window
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := keyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate window: %w", err)
		}
	}

	if count <= int64(l.requests) {
		return Decision{
			Allowed:   true,
			Limit:     l.requests,
			Remaining: l.requests - int(count),
		}, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read rate window: %w", err)
	}
	if ttl < 0 {
		// the key lost its expiry; start a fresh window so it cannot block forever
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate window: %w", err)
		}
		ttl = l.window
	}

	return Decision{
		Allowed:    false,
		Limit:      l.requests,
		Remaining:  0,
		RetryAfter: ttl,
	}, nil
}
