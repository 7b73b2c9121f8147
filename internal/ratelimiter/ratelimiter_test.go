package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ready reports whether a token can be taken without waiting more than a
// few milliseconds.
func ready(t *testing.T, limiter *RateLimiter) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	return limiter.Wait(ctx) == nil
}

func TestWait_Burst(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		require.True(t, ready(t, limiter), "command %d is within the burst", i)
	}
	assert.False(t, ready(t, limiter), "bucket should be empty after the burst")

	// 10/s refills one token every 100ms
	time.Sleep(110 * time.Millisecond)
	assert.True(t, ready(t, limiter))
}

func TestNew_ZeroBurst(t *testing.T) {
	limiter := New(5, 0)
	assert.True(t, ready(t, limiter))
	assert.False(t, ready(t, limiter))
}

func TestWait_Throttles(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		require.True(t, ready(t, limiter), "unlimited limiter refused command %d", i)
	}
}

func BenchmarkWait(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = limiter.Wait(ctx)
	}
}
