package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"closet/cmd/internal/apperr"
	authapi "closet/cmd/internal/auth/api"
	v1 "closet/shared/contracts/auth/v1"
)

// DefaultMessage is the body of a rejected request.
const DefaultMessage = "Too many requests from this IP, please try again in an hour!"

// Middleware limits requests per key. Backend failures let the request through.
type Middleware struct {
	limiter Limiter
	key     func(*http.Request) string
	resp    *apperr.Responder
	log     *slog.Logger
	now     func() time.Time
	message string

	onReject func()
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithMessage overrides DefaultMessage.
func WithMessage(msg string) Option {
	return func(m *Middleware) {
		if msg != "" {
			m.message = msg
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Middleware) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRejectHook runs fn for every rejected request.
func WithRejectHook(fn func()) Option {
	return func(m *Middleware) { m.onReject = fn }
}

// NewMiddleware limits by key(r); an empty key bypasses the limiter.
func NewMiddleware(l Limiter, key func(*http.Request) string, resp *apperr.Responder, log *slog.Logger, opts ...Option) *Middleware {
	if log == nil {
		log = slog.Default()
	}
	if resp == nil {
		resp = apperr.NewResponder(log, false)
	}
	m := &Middleware{
		limiter: l,
		key:     key,
		resp:    resp,
		log:     log,
		now:     time.Now,
		message: DefaultMessage,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Wrap returns next guarded by the limiter.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		if key == "" || m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		d, err := m.limiter.Allow(r.Context(), key, m.now())
		if err != nil {
			m.log.Error("ratelimit.fail", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))

		if !d.Allowed {
			if d.RetryAfter > 0 {
				h.Set("Retry-After", strconv.FormatInt(int64(math.Ceil(d.RetryAfter.Seconds())), 10))
			}
			if m.onReject != nil {
				m.onReject()
			}
			m.resp.Write(w, r, apperr.New(http.StatusTooManyRequests, v1.CodeRateLimited, m.message))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ByClientIP keys requests by the caller's address. X-Forwarded-For is only
// honored when trustProxy is set.
func ByClientIP(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		ip := authapi.ClientIP(r, trustProxy)
		if ip == nil {
			return ""
		}
		return ip.String()
	}
}
