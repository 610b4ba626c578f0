package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLimiter_SixthRequestInWindowIsRejected(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(DefaultConfig, clock.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, res.Remaining)
		clock.Advance(2 * time.Second)
	}

	res, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 50*time.Second, res.RetryAfter)

	// 61s after the first request the oldest event has left the window.
	clock.t = time.Date(2024, 1, 1, 12, 1, 1, 0, time.UTC)
	res, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l := NewMemoryLimiter(Config{Limit: 1, Window: time.Minute}, clock.Now)

	res, _ := l.Allow(context.Background(), "a")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(context.Background(), "a")
	assert.False(t, res.Allowed)
	res, _ = l.Allow(context.Background(), "b")
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_DeniedRequestsDoNotExtendWindow(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l := NewMemoryLimiter(Config{Limit: 1, Window: time.Minute}, clock.Now)
	ctx := context.Background()

	res, _ := l.Allow(ctx, "a")
	require.True(t, res.Allowed)
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		res, _ = l.Allow(ctx, "a")
		require.False(t, res.Allowed)
	}
	clock.Advance(11 * time.Second)
	res, _ = l.Allow(ctx, "a")
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l := NewMemoryLimiter(DefaultConfig, clock.Now)
	_, _ = l.Allow(context.Background(), "a")
	_, _ = l.Allow(context.Background(), "b")

	clock.Advance(30 * time.Second)
	_, _ = l.Allow(context.Background(), "b")
	clock.Advance(31 * time.Second)
	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.events, "a")
	assert.Len(t, l.events["b"], 1)
}
