// Copyright (c) 2026 Veriface Labs. All rights reserved.

package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/internal/ratelimit"
)

func testPolicy(max int) ratelimit.Policy {
	return ratelimit.Policy{Window: time.Minute, MaxAttempts: max}
}

/*
TestMemoryBudget_ExhaustsAfterMaxAttempts verifies the N+1th reservation
within a window is refused.
*/
func TestMemoryBudget_ExhaustsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	budget := ratelimit.NewMemoryBudget(testPolicy(3))

	for i := 0; i < 3; i++ {
		require.NoError(t, budget.Reserve(ctx, "alice", "s1"))
	}

	err := budget.Reserve(ctx, "alice", "s1")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))

	// A different source has its own budget.
	assert.NoError(t, budget.Reserve(ctx, "alice", "s2"))

	// So does a different user.
	assert.NoError(t, budget.Reserve(ctx, "bob", "s1"))
}

/*
TestMemoryBudget_WindowReset verifies the fixed window resets after expiry.
*/
func TestMemoryBudget_WindowReset(t *testing.T) {
	ctx := context.Background()
	currentTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	budget := ratelimit.NewMemoryBudget(testPolicy(2)).WithClock(func() time.Time { return currentTime })

	require.NoError(t, budget.Reserve(ctx, "alice", "s1"))
	require.NoError(t, budget.Reserve(ctx, "alice", "s1"))
	require.Error(t, budget.Reserve(ctx, "alice", "s1"))

	// Advance past the window: budget is fresh again.
	currentTime = currentTime.Add(61 * time.Second)
	assert.NoError(t, budget.Reserve(ctx, "alice", "s1"))
}

/*
TestMemoryBudget_Release verifies a returned slot can be reserved again.
*/
func TestMemoryBudget_Release(t *testing.T) {
	ctx := context.Background()
	budget := ratelimit.NewMemoryBudget(testPolicy(1))

	require.NoError(t, budget.Reserve(ctx, "alice", "s1"))
	require.Error(t, budget.Reserve(ctx, "alice", "s1"))

	require.NoError(t, budget.Release(ctx, "alice", "s1"))
	assert.NoError(t, budget.Reserve(ctx, "alice", "s1"))

	// Releasing an unknown key is a no-op, not an error.
	assert.NoError(t, budget.Release(ctx, "ghost", "s1"))
}

/*
TestMemoryBudget_ConcurrentReserve verifies check-and-record atomicity:
exactly MaxAttempts of the concurrent reservations may win.
*/
func TestMemoryBudget_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	const maxAttempts = 5
	const goroutines = 50

	budget := ratelimit.NewMemoryBudget(testPolicy(maxAttempts))

	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- budget.Reserve(ctx, "alice", "s1")
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for err := range results {
		if err == nil {
			granted++
		} else {
			assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))
		}
	}
	assert.Equal(t, maxAttempts, granted)
}

/*
TestMemoryReplayGuard verifies nonce reuse is refused within the TTL and
allowed after expiry.
*/
func TestMemoryReplayGuard(t *testing.T) {
	ctx := context.Background()
	currentTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	guard := ratelimit.NewMemoryReplayGuard(time.Minute).WithClock(func() time.Time { return currentTime })

	require.NoError(t, guard.CheckNonce(ctx, "n1"))

	err := guard.CheckNonce(ctx, "n1")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeReplayedProbe))

	// Distinct nonce passes.
	assert.NoError(t, guard.CheckNonce(ctx, "n2"))

	// After the TTL the nonce may be reused.
	currentTime = currentTime.Add(2 * time.Minute)
	assert.NoError(t, guard.CheckNonce(ctx, "n1"))
}
