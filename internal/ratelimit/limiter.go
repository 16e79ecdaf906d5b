// Package ratelimit implements a Redis-backed fixed window limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the state of a key's current window.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts hits per key in fixed windows.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// New returns a limiter allowing limit hits per window. A non-positive limit disables it.
func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "helpdesk:ratelimit:"}
}

// Allow records one hit for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return Result{Allowed: true, Remaining: -1}, nil
	}
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)

	count64, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit: %w", err)
	}
	if count64 == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit: %w", err)
		}
	}
	resetIn, err := l.rdb.PTTL(ctx, redisKey).Result()
	if err != nil || resetIn < 0 {
		resetIn = l.window
	}

	count := int(count64)
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= l.limit, Remaining: remaining, ResetIn: resetIn}, nil
}
