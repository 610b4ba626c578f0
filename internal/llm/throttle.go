package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled caps the request rate of a provider across all users of the process.
// Calls wait for a token and give up when ctx is done.
type Throttled struct {
	next    Generator
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of perSecond tokens and the given burst.
func NewThrottled(next Generator, perSecond float64, burst int) *Throttled {
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Generate implements Generator.
func (t *Throttled) Generate(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for provider capacity: %w", err)
	}
	return t.next.Generate(ctx, req)
}
