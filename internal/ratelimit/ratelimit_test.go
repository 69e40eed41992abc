package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDelayStaysInRange(t *testing.T) {
	r := NewSimpleRateLimiter(3*time.Second, 6*time.Second)
	seen := make(map[time.Duration]bool)
	for i := 0; i < 1000; i++ {
		d := r.calculateDelay()
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.Less(t, d, 6*time.Second)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "delays are randomized")
}

func TestCalculateDelayFixed(t *testing.T) {
	r := NewSimpleRateLimiter(2*time.Second, 2*time.Second)
	assert.Equal(t, 2*time.Second, r.calculateDelay())

	r.SetDelay(5*time.Second, time.Second)
	assert.Equal(t, 5*time.Second, r.calculateDelay(), "max below min uses min")
}

func TestWaitFirstCallDoesNotBlock(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, 2*time.Hour)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitSpacesCalls(t *testing.T) {
	r := NewSimpleRateLimiter(20*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Wait(ctx))
	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaitHonoursCancellation(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, 2*time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPauseAlwaysSleeps(t *testing.T) {
	r := NewSimpleRateLimiter(10*time.Millisecond, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.SetDelay(time.Hour, time.Hour)
	assert.ErrorIs(t, r.Pause(ctx), context.Canceled)
}
