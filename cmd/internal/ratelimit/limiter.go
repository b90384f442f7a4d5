// Package ratelimit caps requests per client key over a time window.
//
// Memory keeps a sliding window per key inside one process. Redis keeps a
// fixed window counter shared by every replica.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures (Redis down, ...).
var ErrUnavailable = errors.New("ratelimit: backend unavailable")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether one more event for key is allowed at now.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}
