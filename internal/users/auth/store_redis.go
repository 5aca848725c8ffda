// Copyright (c) 2026 Inkframe. All rights reserved.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// # Login Limiter

// RedisLoginLimiter implements [LoginLimiter] with a fixed-window counter.
//
// # Algorithm
//
// The first attempt in a window creates the counter with the window TTL;
// subsequent attempts INCR it. Once the counter exceeds the limit, attempts
// are refused until the key expires. Fixed windows admit a burst at the
// boundary, which is acceptable for a login throttle and keeps the hot path
// at a single round trip.
type RedisLoginLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewLoginLimiter creates a Redis-backed fixed-window login limiter.
func NewLoginLimiter(client *redis.Client, limit int, window time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

/*
Allow records one attempt for the key and reports whether it fits the window.

Description: Only the increment that creates the counter stamps the window
TTL. Attempts after the first, allowed or denied, must not touch the TTL:
refreshing it would slide the window forward and keep a throttled client
locked out for as long as it keeps retrying. A backend failure is returned
to the caller, which fails closed.

Parameters:
  - context: context.Context
  - key: string (typically the client IP)

Returns:
  - bool: true when the attempt is within the limit
  - error: Connectivity errors
*/
func (limiter *RedisLoginLimiter) Allow(context context.Context, key string) (bool, error) {
	bucketKey := fmt.Sprintf("auth:login_attempts:%s", key)

	counter, err := limiter.client.Incr(context, bucketKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis_login_limiter_failed: %w", err)
	}

	if counter == 1 {
		if err := limiter.client.Expire(context, bucketKey, limiter.window).Err(); err != nil {
			return false, fmt.Errorf("redis_login_limiter_expire_failed: %w", err)
		}
	}

	return counter <= limiter.limit, nil
}

// # Identity Cache

// RedisIdentityCache caches outward-facing account profiles briefly.
//
// The cache only serves the /auth/me read path; every security decision is
// made from the signed token or the database, never from this cache.
type RedisIdentityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdentityCache creates a Redis-backed profile cache.
func NewIdentityCache(client *redis.Client, ttl time.Duration) *RedisIdentityCache {
	return &RedisIdentityCache{client: client, ttl: ttl}
}

/*
GetProfile retrieves a cached profile JSON payload by user ID.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []byte: Raw JSON payload, nil on a cache miss
  - error: Connectivity errors (a miss is not an error)
*/
func (cache *RedisIdentityCache) GetProfile(context context.Context, userID string) ([]byte, error) {
	key := fmt.Sprintf("auth:profile:%s", userID)

	payload, err := cache.client.Get(context, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_identity_cache_get_failed: %w", err)
	}

	return payload, nil
}

/*
SetProfile stores a profile JSON payload with the cache TTL.

Parameters:
  - context: context.Context
  - userID: string
  - payload: []byte

Returns:
  - error: Execution errors
*/
func (cache *RedisIdentityCache) SetProfile(context context.Context, userID string, payload []byte) error {
	key := fmt.Sprintf("auth:profile:%s", userID)

	if err := cache.client.Set(context, key, payload, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis_identity_cache_set_failed: %w", err)
	}

	return nil
}

/*
Invalidate drops the cached profile for a user after a mutation.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Deletion failures
*/
func (cache *RedisIdentityCache) Invalidate(context context.Context, userID string) error {
	key := fmt.Sprintf("auth:profile:%s", userID)

	if err := cache.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_identity_cache_invalidate_failed: %w", err)
	}

	return nil
}
