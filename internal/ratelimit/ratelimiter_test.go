package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, limit int) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, limit)
}

func TestNoopLimiterAllowsEverything(t *testing.T) {
	l := NewNoopLimiter()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(context.Background(), "caller"))
	}
}

func TestRedisLimiterEnforcesWindow(t *testing.T) {
	l := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(context.Background(), "caller-a"), "request %d should pass", i)
	}
	assert.False(t, l.Allow(context.Background(), "caller-a"), "request over the limit should be rejected")

	// Another caller has an independent budget.
	assert.True(t, l.Allow(context.Background(), "caller-b"))
}

func TestRedisLimiterZeroLimitDisables(t *testing.T) {
	l := newTestLimiter(t, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(context.Background(), "caller"))
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, 1)
	mr.Close()

	assert.True(t, l.Allow(context.Background(), "caller"), "redis outage must not block traffic")
}
