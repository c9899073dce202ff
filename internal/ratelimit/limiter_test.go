package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xozmart/order-service/internal/ratelimit"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(clock.Now), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "203.0.113.7"), "call %d should be admitted", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "203.0.113.7"), "6th call should be rejected")
}

func TestLimiter_WindowResetsLazily(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(clock.Now), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		limiter.Allow(ctx, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, "203.0.113.7"))

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.Allow(ctx, "203.0.113.7"), "call after window expiry should be admitted")
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(clock.Now), 1, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "203.0.113.7"))
	assert.False(t, limiter.Allow(ctx, "203.0.113.7"))
	assert.True(t, limiter.Allow(ctx, "198.51.100.23"))
	assert.True(t, limiter.Allow(ctx, "unknown"))
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter := ratelimit.New(failingStore{}, 5, time.Minute)

	assert.True(t, limiter.Allow(context.Background(), "203.0.113.7"))
}
