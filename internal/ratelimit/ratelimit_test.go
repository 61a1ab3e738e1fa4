package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_BurstPerClient(t *testing.T) {
	rl := New(1, 3)
	defer rl.Stop()

	passed := 0
	for range 5 {
		if rl.Allow("203.0.113.7") {
			passed++
		}
	}
	assert.Equal(t, 3, passed)

	// Another client has its own bucket.
	assert.True(t, rl.Allow("198.51.100.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_WaitRefills(t *testing.T) {
	rl := New(20, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "10.0.0.1"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "10.0.0.1"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestKeyedRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	require.True(t, rl.Allow("10.0.0.1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "10.0.0.1"))
}

func TestKeyedRateLimiter_ShutdownStopsSweeper(t *testing.T) {
	rl := New(1, 1)
	assert.NoError(t, rl.Shutdown())
}

func TestKeyedRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	rl := NewWithTTL(1, 1, time.Hour)
	defer rl.Stop()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.mu.Lock()
	rl.now = func() time.Time { return clock }
	rl.mu.Unlock()

	rl.Allow("old")
	clock = clock.Add(50 * time.Minute)
	rl.Allow("recent")
	clock = clock.Add(20 * time.Minute)

	assert.Equal(t, 1, rl.sweep())
	assert.Equal(t, 1, rl.Len())

	// A swept key starts over with a full bucket.
	assert.True(t, rl.Allow("old"))
}
