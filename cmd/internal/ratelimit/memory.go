package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-key sliding-window limiter.
type Memory struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	keys   map[string][]time.Time

	lastSweep time.Time
}

// NewMemory constructs a Memory limiter with safe defaults when inputs are invalid.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Memory{
		limit:  limit,
		window: window,
		keys:   make(map[string][]time.Time),
	}
}

// Allow reports whether an event for key at time now should be permitted.
func (m *Memory) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cut := now.Add(-m.window)
	m.sweep(now, cut)

	events := prune(m.keys[key], cut)
	if len(events) >= m.limit {
		m.keys[key] = events
		return Decision{
			Allowed:    false,
			Limit:      m.limit,
			Remaining:  0,
			RetryAfter: events[0].Sub(cut),
		}, nil
	}

	events = append(events, now)
	m.keys[key] = events
	return Decision{
		Allowed:   true,
		Limit:     m.limit,
		Remaining: m.limit - len(events),
	}, nil
}

// sweep drops idle keys at most once per window.
func (m *Memory) sweep(now, cut time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for k, events := range m.keys {
		if len(events) == 0 || !events[len(events)-1].After(cut) {
			delete(m.keys, k)
		}
	}
}

func prune(events []time.Time, cut time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cut) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}
