// Copyright (c) 2026 Veriface Labs. All rights reserved.

package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veriface/veriface/internal/platform/constants"
)

// RedisWatermarkStore implements WatermarkStore using Redis.
//
// The watermark key persists for the token TTL plus a margin: once every
// token issued before the watermark has expired on its own, the watermark
// carries no further information and may lapse.
type RedisWatermarkStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWatermarkStore creates a Redis-backed revocation watermark store.
// tokenTTL should match the issuer's token lifetime.
func NewRedisWatermarkStore(client *redis.Client, tokenTTL time.Duration) *RedisWatermarkStore {
	// Double the token TTL covers clock skew between issuer and store.
	return &RedisWatermarkStore{client: client, ttl: 2 * tokenTTL}
}

/*
SetValidSince records the revocation watermark.

Parameters:
  - ctx: context.Context
  - userID: Normalized user identifier
  - at: Watermark instant

Returns:
  - error: Execution errors
*/
func (store *RedisWatermarkStore) SetValidSince(ctx context.Context, userID string, at time.Time) error {
	key := constants.RedisPrefixRevokedFrom + userID

	if err := store.client.Set(ctx, key, at.UnixNano(), store.ttl).Err(); err != nil {
		return fmt.Errorf("redis_watermark_set_failed: %w", err)
	}

	return nil
}

/*
ValidSince retrieves the revocation watermark.

Description: Returns the zero time when the user has never been revoked
(or the watermark has lapsed past its retention window).

Parameters:
  - ctx: context.Context
  - userID: Normalized user identifier

Returns:
  - time.Time: Watermark instant or zero
  - error: Connectivity errors
*/
func (store *RedisWatermarkStore) ValidSince(ctx context.Context, userID string) (time.Time, error) {
	key := constants.RedisPrefixRevokedFrom + userID

	nanos, err := store.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis_watermark_get_failed: %w", err)
	}

	return time.Unix(0, nanos), nil
}
