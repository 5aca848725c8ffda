// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package rbac implements menu-based access control for Inkframe.

Authorization is expressed as a matrix: menu nodes (rows) crossed with the
action set view/create/update/delete (columns). Roles hold default grants;
per-user overrides adjust individual cells. The resolver answers every
"may user U do action A on menu M" question in the system, including which
navigation entries a user sees.

Decision precedence, highest first:

 1. super_admin bypass: the role is allowed everything, explicitly.
 2. Exact user override for (user, menu, action): final, allow or deny.
 3. Role grant for (role, menu, action).
 4. Default deny.

Resolved matrices are cached in Redis behind generation counters; every
mutation of the permission graph bumps the relevant counter synchronously,
so a revocation is live before the mutating request returns.
*/
package rbac

import (
	"sort"
	"time"

	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Entities

// Role is a named privilege tier persisted in iam.role.
//
// Level orders tiers (lower = more privileged). System roles ship with the
// platform and cannot be deleted.
type Role struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Menu is one node of the navigation tree persisted in iam.menu.
//
// Code is the stable machine identifier (slug); Labels maps locale tags to
// display names, with Name as the final fallback.
type Menu struct {
	ID        string            `json:"id"`
	ParentID  *string           `json:"parent_id,omitempty"`
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels,omitempty"`
	SortOrder int               `json:"sort_order"`
	CreatedAt time.Time         `json:"created_at"`
}

// Label resolves the display name for a locale, falling back to the default
// locale and finally to the raw Name.
func (menu *Menu) Label(locale string) string {
	if label, ok := menu.Labels[locale]; ok && label != "" {
		return label
	}
	if label, ok := menu.Labels[DefaultLocale]; ok && label != "" {
		return label
	}
	return menu.Name
}

// RolePermission is one default grant cell: (role, menu, action) → allowed.
type RolePermission struct {
	RoleCode  string     `json:"role_code"`
	MenuCode  string     `json:"menu_code"`
	Action    sec.Action `json:"action"`
	Allowed   bool       `json:"allowed"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserOverride is one per-user adjustment cell. For its exact triple it is
// final: an override deny beats a role allow and vice versa.
type UserOverride struct {
	UserID    string     `json:"user_id"`
	MenuCode  string     `json:"menu_code"`
	Action    sec.Action `json:"action"`
	Allowed   bool       `json:"allowed"`
	CreatedAt time.Time  `json:"created_at"`
}

// # Resolved Views

// PermissionSet is a user's fully resolved matrix: menu code → action →
// allowed. Missing cells mean deny.
type PermissionSet map[string]map[string]bool

// Allows reports the resolved decision for one cell.
func (set PermissionSet) Allows(menuCode string, action sec.Action) bool {
	actions, ok := set[menuCode]
	if !ok {
		return false
	}
	return actions[string(action)]
}

// AllowedActions returns the allowed actions for a menu in enum order.
func (set PermissionSet) AllowedActions(menuCode string) []sec.Action {
	var actions []sec.Action
	for _, action := range sec.Actions() {
		if set.Allows(menuCode, action) {
			actions = append(actions, action)
		}
	}
	return actions
}

// MenuNode is one entry of the filtered, localized navigation tree.
type MenuNode struct {
	ID        string       `json:"id"`
	Code      string       `json:"code"`
	Label     string       `json:"label"`
	SortOrder int          `json:"sort_order"`
	Actions   []sec.Action `json:"actions"`
	Children  []*MenuNode  `json:"children,omitempty"`
}

// sortNodes orders siblings by SortOrder, code as a stable tiebreaker.
func sortNodes(nodes []*MenuNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Code < nodes[j].Code
	})
	for _, node := range nodes {
		sortNodes(node.Children)
	}
}

// # Well-Known Codes

const (
	// DefaultLocale is the label fallback locale.
	DefaultLocale = "en"

	// MenuRoles, MenuMenus, MenuPermissions are the administration menu
	// codes gating the rbac endpoints themselves.
	MenuRoles       = "roles"
	MenuMenus       = "menus"
	MenuPermissions = "permissions"

	// MenuAccounts gates the account administration endpoints.
	MenuAccounts = "accounts"
)

// # Field Identifiers

const (
	FieldCode      = "code"
	FieldName      = "name"
	FieldLevel     = "level"
	FieldParentID  = "parent_id"
	FieldLabels    = "labels"
	FieldSortOrder = "sort_order"
	FieldRoleCode  = "role_code"
	FieldMenuCode  = "menu_code"
	FieldUserID    = "user_id"
	FieldAction    = "action"
	FieldAllowed   = "allowed"
	FieldLocale    = "locale"
)
