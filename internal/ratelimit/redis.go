// Copyright (c) 2026 Veriface Labs. All rights reserved.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/internal/platform/constants"
)

// # Redis Budget

// RedisBudget implements Budget on a shared Redis instance.
//
// # Atomicity
//
// Reservation runs as a single Lua script: the INCR is the linearization
// point, the window expiry is set in the same round trip, and an over-budget
// increment is compensated before the script returns. A crash can therefore
// never leave a counter without a TTL, and Release bookkeeping stays exact.
type RedisBudget struct {
	client *redis.Client
	policy Policy
}

// reserveScript claims one slot: returns 1 when admitted, 0 when the window
// budget (ARGV[2]) is spent. ARGV[1] is the window length in milliseconds.
var reserveScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if count > tonumber(ARGV[2]) then
	redis.call("DECR", KEYS[1])
	return 0
end
return 1
`)

// NewRedisBudget creates a Redis-backed attempt budget.
func NewRedisBudget(client *redis.Client, policy Policy) *RedisBudget {
	return &RedisBudget{client: client, policy: policy}
}

/*
Reserve atomically claims one attempt slot.

Description: Runs the reservation script; the first reservation in a window
sets the expiry that implements the fixed-window reset, in the same atomic
step as the increment.

Parameters:
  - ctx: context.Context
  - userID: Claimed user identifier
  - source: Source identifier

Returns:
  - error: apperr.RateLimited over budget, or connectivity errors
*/
func (budget *RedisBudget) Reserve(ctx context.Context, userID, source string) error {
	key := budgetKey(userID, source)

	admitted, err := reserveScript.Run(ctx, budget.client, []string{key},
		budget.policy.Window.Milliseconds(), budget.policy.MaxAttempts).Int64()
	if err != nil {
		return fmt.Errorf("ratelimit_reserve_failed: %w", err)
	}

	if admitted == 0 {
		return apperr.RateLimited()
	}

	return nil
}

/*
Release returns one reserved slot.

Parameters:
  - ctx: context.Context
  - userID: Claimed user identifier
  - source: Source identifier

Returns:
  - error: Connectivity errors
*/
func (budget *RedisBudget) Release(ctx context.Context, userID, source string) error {
	key := budgetKey(userID, source)

	count, err := budget.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit_release_failed: %w", err)
	}

	// A released slot on an already-expired window must not leave a negative
	// counter behind for the next window.
	if count < 0 {
		_ = budget.client.Del(ctx, key).Err()
	}

	return nil
}

// budgetKey builds the Redis key for a (userID, source) pair.
func budgetKey(userID, source string) string {
	return constants.RedisPrefixRateBudget + userID + ":" + source
}

// # Redis Replay Guard

// RedisReplayGuard implements ReplayGuard with SET NX semantics.
type RedisReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReplayGuard creates a Redis-backed replay guard. Nonces are
// remembered for the given TTL (typically the budget window).
func NewRedisReplayGuard(client *redis.Client, ttl time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, ttl: ttl}
}

/*
CheckNonce records the nonce if unseen.

Description: SET NX is atomic, so two concurrent submissions of the same
nonce race to a single winner; the loser is refused.

Parameters:
  - ctx: context.Context
  - nonce: Probe nonce

Returns:
  - error: apperr.ReplayedProbe if the nonce was seen, or connectivity errors
*/
func (guard *RedisReplayGuard) CheckNonce(ctx context.Context, nonce string) error {
	key := constants.RedisPrefixProbeNonce + nonce

	stored, err := guard.client.SetNX(ctx, key, 1, guard.ttl).Result()
	if err != nil {
		return fmt.Errorf("ratelimit_nonce_check_failed: %w", err)
	}

	if !stored {
		return apperr.ReplayedProbe()
	}

	return nil
}
