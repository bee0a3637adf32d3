// Package ratelimit implements sliding-window request limiting backed by
// Redis sorted sets. The window state lives in Redis so limits hold across
// server replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Allower is the limiter contract consumed by the HTTP middleware.
type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limiter implements Allower over Redis.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewLimiter constructs a limiter. keyPrefix namespaces its keys so they
// cannot collide with other Redis users.
func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{client: client, keyPrefix: keyPrefix}
}

// slidingWindowScript trims expired entries, counts the window, and either
// records the request or reports when the window resets. Member values are
// generated from an INCR counter so concurrent requests in the same
// millisecond stay distinct. Runs atomically inside Redis.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return {1, limit - current - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_at = 0
	if oldest and #oldest >= 2 then
		reset_at = tonumber(oldest[2]) + window_ms
	end
	return {0, 0, reset_at}
`)

// Allow records the request under key if the window has capacity and
// reports the decision. Timestamps are handled in milliseconds end to end.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	redisKey := l.keyPrefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey},
		now.UnixMilli(), now.Add(-window).UnixMilli(), limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("unexpected redis response length: %d", len(raw))
	}

	resetAt := now.Add(window)
	if raw[2] > 0 {
		resetAt = time.UnixMilli(raw[2])
	}

	return &Result{
		Allowed:   raw[0] == 1,
		Remaining: int(raw[1]),
		ResetAt:   resetAt,
		Limit:     limit,
	}, nil
}

// Reset clears the window for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.keyPrefix+key, l.keyPrefix+key+":counter").Err()
}
