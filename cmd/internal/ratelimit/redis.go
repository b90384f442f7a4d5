package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter over INCR + EXPIRE, shared by every
// process talking to the same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedis constructs a Redis limiter. Keys are stored as prefix+key.
func NewRedis(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "closet:rl:"
	}
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one event for key in the current window.
func (l *Redis) Allow(ctx context.Context, key string, _ time.Time) (Decision, error) {
	k := l.prefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count <= int64(l.limit) {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - int(count)}, nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. EXPIRE failed after INCR); restore it.
		ttl = l.window
		_ = l.client.Expire(ctx, k, ttl).Err()
	}
	return Decision{Allowed: false, Limit: l.limit, RetryAfter: ttl}, nil
}
