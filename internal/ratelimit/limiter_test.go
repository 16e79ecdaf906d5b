package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLimiter_BlocksAfterLimit(t *testing.T) {
	l := New(newRedis(t), 2, time.Hour)
	ctx := context.Background()

	first, err := l.Allow(ctx, "svc")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second, err := l.Allow(ctx, "svc")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := l.Allow(ctx, "svc")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Positive(t, third.ResetIn)

	other, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLimiter_DisabledAllowsEverything(t *testing.T) {
	l := New(nil, 1, time.Minute)
	for i := 0; i < 5; i++ {
		res, err := l.Allow(context.Background(), "svc")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}
