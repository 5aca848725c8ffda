// Copyright (c) 2026 Inkframe. All rights reserved.

package sec

// # User Roles

// UserRole represents the coarse authorization level granted to an account.
//
// Fine-grained access is decided by the RBAC resolver; the role enum exists
// so that boundary code never compares raw strings scattered across call sites.
type UserRole string

const (
	// Unrestricted system access; bypasses the permission matrix entirely
	RoleSuperAdmin UserRole = "super_admin"

	// Can manage tenant content and reach the management area
	RoleAdmin UserRole = "admin"

	// Default role for standard registered users
	RoleUser UserRole = "user"
)

// ParseRole validates a raw role string at the boundary.
// Unknown values collapse to the empty role, which holds no privileges.
func ParseRole(raw string) UserRole {
	switch UserRole(raw) {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return UserRole(raw)
	default:
		return ""
	}
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-30) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 30
	case RoleAdmin:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}

// # Permission Actions

// Action is the closed set of operations that can be granted on a menu.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates a raw action string at the boundary.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionView, ActionCreate, ActionUpdate, ActionDelete:
		return Action(raw), true
	default:
		return "", false
	}
}

// Actions lists every valid action, in stable order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}
}
