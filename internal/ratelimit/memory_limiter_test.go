package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "user:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, now.Add(time.Minute), result.ResetAt)

	other, err := limiter.Check(ctx, "user:2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(61 * time.Second)
	result, err = limiter.Check(ctx, "user:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
}

func TestMemoryLimiter_ZeroLimitRejects(t *testing.T) {
	limiter := NewMemoryLimiter()

	result, err := limiter.Check(context.Background(), "user:1", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := limiter.Check(ctx, "old", 5, time.Minute)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = limiter.Check(ctx, "fresh", 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))
	assert.Equal(t, 0, limiter.Cleanup(0))
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "fresh")
}
