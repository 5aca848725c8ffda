// Copyright (c) 2026 Inkframe. All rights reserved.

package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Generation-Keyed Matrix Cache

// MatrixCacheTTL bounds how long an orphaned matrix entry can occupy memory
// after its generation moved on. Correctness never depends on this value;
// invalidation happens through the counters.
const MatrixCacheTTL = 5 * time.Minute

const (
	globalGenerationKey  = "rbac:gen:global"
	userGenerationKeyFmt = "rbac:gen:user:%s"
	matrixKeyFmt         = "rbac:matrix:%s:%s:g%d:u%d"
)

// RedisMatrixCache implements [MatrixCache] on Redis.
//
// # Invalidation Model
//
// Matrix entries are stored under a key embedding two generation counters:
// the global one (bumped on role, menu, and role-grant mutations) and a
// per-user one (bumped on override mutations). Bumping either counter makes
// every previously minted key unreachable, so readers can never observe a
// permission state older than the last mutation. Orphaned entries simply
// age out via TTL.
type RedisMatrixCache struct {
	client *redis.Client
}

// NewMatrixCache creates a Redis-backed generation-keyed matrix cache.
func NewMatrixCache(client *redis.Client) *RedisMatrixCache {
	return &RedisMatrixCache{client: client}
}

// generations fetches both counters in one round trip. Absent counters read
// as zero.
func (cache *RedisMatrixCache) generations(context context.Context, userID string) (int64, int64, error) {
	results, err := cache.client.MGet(context,
		globalGenerationKey,
		fmt.Sprintf(userGenerationKeyFmt, userID),
	).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis_matrix_cache_generations_failed: %w", err)
	}

	return parseGeneration(results[0]), parseGeneration(results[1]), nil
}

// parseGeneration converts an MGET result (string or nil) into a counter.
func parseGeneration(value any) int64 {
	text, ok := value.(string)
	if !ok {
		return 0
	}
	var generation int64
	_, _ = fmt.Sscanf(text, "%d", &generation)
	return generation
}

/*
GetMatrix returns the cached matrix for (userID, role) under the current
generations, along with the generations it observed.

Description: Callers hold on to the observed generations and pass them back
to [RedisMatrixCache.SetMatrix] after resolving a miss. The observed pair is
returned on misses too; a miss is the case that leads to a write.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole (part of the key; a role change mints fresh entries)

Returns:
  - PermissionSet: Cached matrix, nil on a miss
  - Generations: The counter pair the lookup ran under
  - bool: Hit indicator
  - error: Connectivity errors (callers fall through to the store)
*/
func (cache *RedisMatrixCache) GetMatrix(context context.Context, userID string, role sec.UserRole) (PermissionSet, Generations, bool, error) {
	globalGen, userGen, err := cache.generations(context, userID)
	if err != nil {
		return nil, Generations{}, false, err
	}
	observed := Generations{Global: globalGen, User: userGen}

	key := fmt.Sprintf(matrixKeyFmt, userID, role, globalGen, userGen)
	payload, err := cache.client.Get(context, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, observed, false, nil
		}
		return nil, observed, false, fmt.Errorf("redis_matrix_cache_get_failed: %w", err)
	}

	matrix := PermissionSet{}
	if err := json.Unmarshal(payload, &matrix); err != nil {
		// A corrupt entry behaves like a miss and will be overwritten
		return nil, observed, false, nil
	}

	return matrix, observed, true, nil
}

/*
SetMatrix stores a freshly resolved matrix under the observed generations.

Description: The key is built from the generations the caller saw when it
read, NOT from the counters' current values. A bump that happened between
the read and this write therefore orphans the entry: it lands under a key no
future read will construct. Re-reading the counters here would publish the
pre-bump matrix under the post-bump key and resurrect a revoked allow.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole
  - matrix: PermissionSet
  - observed: Generations (from the GetMatrix that missed)

Returns:
  - error: Connectivity errors (advisory for callers)
*/
func (cache *RedisMatrixCache) SetMatrix(context context.Context, userID string, role sec.UserRole, matrix PermissionSet, observed Generations) error {
	payload, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("redis_matrix_cache_marshal_failed: %w", err)
	}

	key := fmt.Sprintf(matrixKeyFmt, userID, role, observed.Global, observed.User)
	if err := cache.client.Set(context, key, payload, MatrixCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis_matrix_cache_set_failed: %w", err)
	}

	return nil
}

/*
BumpGlobal invalidates every cached matrix in the system.

Description: Called synchronously inside role, menu, and role-grant
mutations. The mutation is not acknowledged to the client until the bump
succeeded, so no stale allow can outlive a revocation.

Parameters:
  - context: context.Context

Returns:
  - error: Connectivity errors (must propagate, never advisory)
*/
func (cache *RedisMatrixCache) BumpGlobal(context context.Context) error {
	if err := cache.client.Incr(context, globalGenerationKey).Err(); err != nil {
		return fmt.Errorf("redis_matrix_cache_bump_global_failed: %w", err)
	}
	return nil
}

/*
BumpUser invalidates one user's cached matrix after an override mutation.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Connectivity errors (must propagate, never advisory)
*/
func (cache *RedisMatrixCache) BumpUser(context context.Context, userID string) error {
	key := fmt.Sprintf(userGenerationKeyFmt, userID)
	if err := cache.client.Incr(context, key).Err(); err != nil {
		return fmt.Errorf("redis_matrix_cache_bump_user_failed: %w", err)
	}
	return nil
}
