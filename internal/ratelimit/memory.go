package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps the event timestamps of every key in process memory.
// It is meant for single-instance deployments and tests.
type MemoryLimiter struct {
	cfg    Config
	now    Clock
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryLimiter creates a limiter. A nil clock uses time.Now.
func NewMemoryLimiter(cfg Config, clock Clock) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		cfg:    cfg,
		now:    clock,
		events: make(map[string][]time.Time),
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.events[key], cutoff)
	if len(kept) >= l.cfg.Limit {
		l.events[key] = kept
		return Result{Allowed: false, RetryAfter: kept[0].Sub(cutoff)}, nil
	}
	kept = append(kept, now)
	l.events[key] = kept
	return Result{Allowed: true, Remaining: l.cfg.Limit - len(kept)}, nil
}

// Cleanup drops keys whose events have all left the window.
func (l *MemoryLimiter) Cleanup() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ts := range l.events {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(l.events, key)
		} else {
			l.events[key] = kept
		}
	}
}

// prune drops timestamps at or before cutoff. ts is sorted ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
