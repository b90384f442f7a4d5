package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"closet/cmd/internal/apperr"
	v1 "closet/shared/contracts/auth/v1"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Time) (Decision, error) {
	return Decision{}, errors.New("boom")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	rejected := 0
	mw := NewMiddleware(
		NewMemory(2, time.Hour),
		ByClientIP(false),
		apperr.NewResponder(testLogger(), false),
		testLogger(),
		WithClock(func() time.Time { return now }),
		WithRejectHook(func() { rejected++ }),
	)
	h := mw.Wrap(okHandler())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/closets", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do(); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, rr.Code)
		}
	}

	rr := do()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "3600" {
		t.Fatalf("Retry-After = %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", got)
	}
	var body v1.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != v1.CodeRateLimited || body.Message != DefaultMessage {
		t.Fatalf("unexpected body: %+v", body)
	}
	if rejected != 1 {
		t.Fatalf("reject hook ran %d times", rejected)
	}
}

func TestMiddleware_FailsOpen(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(failingLimiter{}, ByClientIP(false), nil, testLogger())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mw.Wrap(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rr.Code)
	}
}

func TestByClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := ByClientIP(false)(req); got != "10.0.0.1" {
		t.Fatalf("untrusted key = %q", got)
	}
	if got := ByClientIP(true)(req); got != "203.0.113.7" {
		t.Fatalf("trusted key = %q", got)
	}
}
