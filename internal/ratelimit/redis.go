package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindow trims the sorted set to the window, then adds the event if there is room.
// Scores are unix milliseconds. Returns {allowed, count, oldestScore}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisLimiter shares the window between every instance of the service.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
	now    Clock
}

// NewRedisLimiter creates a limiter storing one sorted set per key under prefix.
func NewRedisLimiter(client *redis.Client, cfg Config, prefix string, clock Clock) *RedisLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix, now: clock}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UnixMilli()
	window := l.cfg.Window.Milliseconds()

	res, err := slidingWindow.Run(ctx, l.client,
		[]string{l.prefix + key},
		now, window, l.cfg.Limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script for key '%s': %w", key, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldest, _ := vals[2].(int64)

	if allowed == 1 {
		return Result{Allowed: true, Remaining: l.cfg.Limit - int(count)}, nil
	}
	retry := time.Duration(oldest+window-now) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Result{Allowed: false, RetryAfter: retry}, nil
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at '%s': %w", addr, err)
	}
	return rdb, nil
}
