package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T, cfg Config, clock Clock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisLimiter(client, cfg, "ratelimit:essay:", clock), mr
}

func TestRedisLimiter_RollingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l, mr := setupRedisLimiter(t, DefaultConfig, clock.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		clock.Advance(time.Second)
	}

	res, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 55*time.Second, res.RetryAfter)
	assert.True(t, mr.Exists("ratelimit:essay:user-1"))

	clock.t = time.Date(2024, 1, 1, 12, 1, 1, 0, time.UTC)
	res, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_RemainingCount(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l, _ := setupRedisLimiter(t, Config{Limit: 3, Window: time.Minute}, clock.Now)

	res, err := l.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
	res, err = l.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}

func TestRedisLimiter_ConnectionError(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l, mr := setupRedisLimiter(t, DefaultConfig, clock.Now)
	mr.Close()

	_, err := l.Allow(context.Background(), "u")
	assert.Error(t, err)
}
