// Copyright (c) 2026 Veriface Labs. All rights reserved.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/veriface/veriface/internal/platform/apperr"
)

// # In-Memory Budget
//
// Single-process implementation used by tests and single-node deployments
// that run without Redis. Semantics mirror [RedisBudget] exactly.

// clock abstracts time.Now so window expiry is testable.
type clock func() time.Time

type windowCounter struct {
	windowStart time.Time
	count       int
}

// MemoryBudget implements Budget with an in-process map.
type MemoryBudget struct {
	mu      sync.Mutex
	policy  Policy
	now     clock
	windows map[string]*windowCounter
}

// NewMemoryBudget creates an in-memory attempt budget.
func NewMemoryBudget(policy Policy) *MemoryBudget {
	return &MemoryBudget{
		policy:  policy,
		now:     time.Now,
		windows: make(map[string]*windowCounter),
	}
}

// WithClock replaces the time source. Test hook.
func (budget *MemoryBudget) WithClock(now func() time.Time) *MemoryBudget {
	budget.now = now
	return budget
}

// Reserve atomically claims one attempt slot; the mutex is the
// linearization point equivalent of the Redis INCR.
func (budget *MemoryBudget) Reserve(_ context.Context, userID, source string) error {
	budget.mu.Lock()
	defer budget.mu.Unlock()

	key := budgetKey(userID, source)
	currentTime := budget.now()

	window, found := budget.windows[key]
	if !found || currentTime.Sub(window.windowStart) >= budget.policy.Window {
		// Fresh window: either no history, or the previous window elapsed.
		window = &windowCounter{windowStart: currentTime}
		budget.windows[key] = window
	}

	if window.count >= budget.policy.MaxAttempts {
		return apperr.RateLimited()
	}

	window.count++
	return nil
}

// Release returns one reserved slot.
func (budget *MemoryBudget) Release(_ context.Context, userID, source string) error {
	budget.mu.Lock()
	defer budget.mu.Unlock()

	key := budgetKey(userID, source)
	window, found := budget.windows[key]
	if !found {
		return nil
	}

	if window.count > 0 {
		window.count--
	}
	if window.count == 0 {
		delete(budget.windows, key)
	}

	return nil
}

// # In-Memory Replay Guard

// MemoryReplayGuard implements ReplayGuard with an in-process map.
type MemoryReplayGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    clock
	nonces map[string]time.Time // nonce -> expiry instant
}

// NewMemoryReplayGuard creates an in-memory replay guard.
func NewMemoryReplayGuard(ttl time.Duration) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		ttl:    ttl,
		now:    time.Now,
		nonces: make(map[string]time.Time),
	}
}

// WithClock replaces the time source. Test hook.
func (guard *MemoryReplayGuard) WithClock(now func() time.Time) *MemoryReplayGuard {
	guard.now = now
	return guard
}

// CheckNonce records the nonce if unseen within its TTL.
func (guard *MemoryReplayGuard) CheckNonce(_ context.Context, nonce string) error {
	guard.mu.Lock()
	defer guard.mu.Unlock()

	currentTime := guard.now()

	// Opportunistic pruning keeps the map bounded without a background ticker.
	for seen, expiry := range guard.nonces {
		if currentTime.After(expiry) {
			delete(guard.nonces, seen)
		}
	}

	if expiry, found := guard.nonces[nonce]; found && currentTime.Before(expiry) {
		return apperr.ReplayedProbe()
	}

	guard.nonces[nonce] = currentTime.Add(guard.ttl)
	return nil
}
