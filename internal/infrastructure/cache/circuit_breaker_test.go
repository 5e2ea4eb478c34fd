package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 10*time.Second)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, cb.Allow(), "probe after cooldown")
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe at a time")

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(10 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestWithCircuitBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	breaker := NewCircuitBreaker(1, time.Hour)
	limiter := WithCircuitBreaker(NewRedisRateLimiter(client, zaptest.NewLogger(t)), breaker)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "ip:10.0.0.1", 5, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.Close()
	_, err = limiter.Allow(ctx, "ip:10.0.0.1", 5, time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCircuitOpen))

	_, err = limiter.Allow(ctx, "ip:10.0.0.1", 5, time.Second)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	_, err = limiter.Remaining(ctx, "ip:10.0.0.1", 5, time.Second)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, limiter.Reset(ctx, "ip:10.0.0.1"), ErrCircuitOpen)
}
