// Package ratelimit throttles chat traffic per caller. Deployments
// without Redis run with the noop limiter, so a single-box install has
// no extra moving parts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"model_gateway/internal/logging"
)

// Limiter decides whether one more request from a caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, callerID string) bool
}

// NoopLimiter allows everything.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(_ context.Context, _ string) bool {
	return true
}

// RedisLimiter enforces a sliding one-minute window per caller using a
// Redis sorted set, so the limit holds across gateway replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int
}

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: perMinute}
}

// Allow records the request and reports whether the caller is within
// the window. Redis trouble fails open: the gateway keeps serving
// rather than turning a cache outage into a chat outage.
func (rl *RedisLimiter) Allow(ctx context.Context, callerID string) bool {
	if rl.limit <= 0 {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s", callerID)
	now := time.Now()
	windowStart := now.Add(-time.Minute)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		logging.Warningf("rate limit check failed for %s: %v", callerID, err)
		return true
	}

	return countCmd.Val() < int64(rl.limit)
}
