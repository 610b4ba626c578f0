// Package ratelimit enforces a maximum number of events per key over a rolling window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool
	// Remaining is the number of further events allowed in the current window.
	Remaining int
	// RetryAfter is how long until the oldest event leaves the window. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter records an event for key when the window has room for it.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config sets the size of the rolling window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig allows 5 events per rolling minute.
var DefaultConfig = Config{Limit: 5, Window: time.Minute}

// Clock returns the current time. Tests replace it to move through windows.
type Clock func() time.Time
