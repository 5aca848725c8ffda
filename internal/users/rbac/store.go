// Copyright (c) 2026 Inkframe. All rights reserved.

package rbac

import (
	"context"

	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Persistence Interfaces

// RoleRepository is the persistence boundary for privilege tiers.
type RoleRepository interface {
	// List returns every role ordered by level.
	List(ctx context.Context) ([]Role, error)

	// FindByCode loads one role by its primary key.
	FindByCode(ctx context.Context, code string) (*Role, error)

	// Insert stores a new role. Duplicate codes surface as a conflict.
	Insert(ctx context.Context, role *Role) error

	// Update modifies the mutable fields (name, level).
	Update(ctx context.Context, role *Role) error

	// Delete removes a role. Referencing grants go with it; accounts still
	// holding the role surface as a conflict.
	Delete(ctx context.Context, code string) error
}

// MenuRepository is the persistence boundary for the navigation tree.
type MenuRepository interface {
	// List returns every menu node ordered by sort order.
	List(ctx context.Context) ([]Menu, error)

	// FindByCode loads one node by its unique slug code.
	FindByCode(ctx context.Context, code string) (*Menu, error)

	// Insert stores a new node. Duplicate codes surface as a conflict.
	Insert(ctx context.Context, menu *Menu) error

	// Update modifies name, labels, parent, and sort order.
	Update(ctx context.Context, menu *Menu) error

	// Delete removes a node. Nodes with children surface as a conflict.
	Delete(ctx context.Context, code string) error
}

// PermissionRepository is the persistence boundary for matrix cells.
type PermissionRepository interface {
	// GrantsForRole returns every grant cell held by a role.
	GrantsForRole(ctx context.Context, roleCode string) ([]RolePermission, error)

	// OverridesForUser returns every override cell held by a user.
	OverridesForUser(ctx context.Context, userID string) ([]UserOverride, error)

	// SetRoleGrant upserts one role grant cell.
	SetRoleGrant(ctx context.Context, grant RolePermission) error

	// DeleteRoleGrant removes one role grant cell, restoring default deny.
	DeleteRoleGrant(ctx context.Context, roleCode, menuCode string, action sec.Action) error

	// SetUserOverride upserts one user override cell.
	SetUserOverride(ctx context.Context, override UserOverride) error

	// DeleteUserOverride removes one override cell, restoring the role
	// decision for that triple.
	DeleteUserOverride(ctx context.Context, userID, menuCode string, action sec.Action) error
}

// # Cache Interface

// Generations pins the counter pair a matrix was read under. A write carries
// the pair observed at read time back to the cache, so a bump that lands
// between resolution and the write orphans the write instead of publishing
// pre-bump data under the post-bump key.
type Generations struct {
	Global int64
	User   int64
}

// MatrixCache caches resolved permission matrices behind generation counters.
//
// A bumped counter orphans every key minted under the previous generation,
// which is how synchronous invalidation works without enumerating keys.
// The cache is advisory on reads: errors and misses fall through to the
// repositories. Bump failures are NOT advisory and must propagate, otherwise
// a revocation could leave a stale allow live until TTL expiry.
type MatrixCache interface {
	// GetMatrix returns the cached matrix for (userID, role) under the
	// current generations, plus the generations it observed. The third
	// result is false on a miss.
	GetMatrix(ctx context.Context, userID string, role sec.UserRole) (PermissionSet, Generations, bool, error)

	// SetMatrix stores a freshly resolved matrix under the generations the
	// caller observed when it read, never the current ones.
	SetMatrix(ctx context.Context, userID string, role sec.UserRole, matrix PermissionSet, observed Generations) error

	// BumpGlobal invalidates every user's cached matrix. Called for role,
	// menu, and role-grant mutations.
	BumpGlobal(ctx context.Context) error

	// BumpUser invalidates one user's cached matrix. Called for override
	// mutations.
	BumpUser(ctx context.Context, userID string) error
}
