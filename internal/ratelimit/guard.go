// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package ratelimit implements the per-user verification attempt budget and the
probe replay guard.

# Budget Model

A fixed window of at most MaxAttempts reservations per Window, keyed by the
(userID, source) pair. Reservations are taken BEFORE scoring and returned only
for outcomes the policy treats as penalty-free (caller cancellation, or an
Inconclusive decision when the deployment allows free retries). Check and
record are therefore one atomic operation — two concurrent attempts can never
both slip under the limit.

# Replay Model

Every probe carries a caller-supplied nonce. A nonce is remembered for the
budget window; a second submission with the same nonce is refused before the
matcher ever runs.

# Enumeration Safety

The budget is keyed purely by the claimed identifier string. Whether that user
actually exists is never consulted, so the RateLimited response is identical
for real and fabricated identities.
*/
package ratelimit

import (
	"context"
	"time"
)

// # Contracts

// Budget is the per-user fixed-window attempt counter.
type Budget interface {

	/*
		Reserve atomically claims one attempt slot for the (userID, source) pair.

		Parameters:
		  - ctx: context.Context
		  - userID: Claimed (normalized) user identifier
		  - source: Caller-supplied source identifier (device, channel)

		Returns:
		  - error: apperr.RateLimited when the window budget is exhausted
	*/
	Reserve(ctx context.Context, userID, source string) error

	/*
		Release returns a previously reserved slot.

		Called on caller cancellation before a decision, and on Inconclusive
		outcomes when the deployment policy does not charge them.

		Parameters:
		  - ctx: context.Context
		  - userID: Claimed (normalized) user identifier
		  - source: Caller-supplied source identifier

		Returns:
		  - error: Storage failures only; never a policy error
	*/
	Release(ctx context.Context, userID, source string) error
}

// ReplayGuard remembers probe nonces and refuses reuse.
type ReplayGuard interface {

	/*
		CheckNonce records the nonce if unseen, or fails if already recorded.

		Parameters:
		  - ctx: context.Context
		  - nonce: Caller-supplied unique probe identifier

		Returns:
		  - error: apperr.ReplayedProbe when the nonce was seen before
	*/
	CheckNonce(ctx context.Context, nonce string) error
}

// # Policy

// Policy carries the tunable budget parameters, injected from configuration.
type Policy struct {
	// Window is the fixed budget window duration.
	Window time.Duration

	// MaxAttempts is the number of reservations allowed per window.
	MaxAttempts int
}
