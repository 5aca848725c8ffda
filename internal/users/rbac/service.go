// Copyright (c) 2026 Inkframe. All rights reserved.

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/ctxutil"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/pkg/slug"
	"github.com/inkframe/inkframe/pkg/uuidv7"
)

// Service implements permission resolution and permission-graph management.
//
// # Review Process
//
// CheckMenuAction is on the hot path of every guarded endpoint and is the
// single authorization authority. Changes to precedence or caching must be
// reviewed before merge.
type Service struct {
	roles       RoleRepository
	menus       MenuRepository
	permissions PermissionRepository
	cache       MatrixCache
}

// NewService constructs the rbac [Service] with its dependencies.
func NewService(
	roles RoleRepository,
	menus MenuRepository,
	permissions PermissionRepository,
	cache MatrixCache,
) *Service {
	return &Service{
		roles:       roles,
		menus:       menus,
		permissions: permissions,
		cache:       cache,
	}
}

// # Resolution

/*
CheckMenuAction answers whether a user may perform an action on a menu node.

Description: Applies the decision precedence documented on the package:
super_admin bypass, then the resolved matrix (override cells already overlaid
on role grants), then default deny. Unknown menu codes and unknown actions
deny rather than error. Store failures deny with the error attached; an
authorization authority must never fail open.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole (from the verified access token)
  - menuCode: string
  - action: sec.Action

Returns:
  - bool: The decision
  - error: Resolution failures (the decision is false in that case)
*/
func (service *Service) CheckMenuAction(context context.Context, userID string, role sec.UserRole, menuCode string, action sec.Action) (bool, error) {

	// 1. Explicit super_admin bypass, visible in the audit trail
	if role == sec.RoleSuperAdmin {
		ctxutil.GetLogger(context).DebugContext(context, "rbac_super_admin_bypass",
			slog.String("user_id", userID),
			slog.String("menu", menuCode),
			slog.String("action", string(action)),
		)
		return true, nil
	}

	// 2. Everyone else goes through the resolved matrix
	matrix, err := service.resolveMatrix(context, userID, role)
	if err != nil {
		return false, err
	}

	return matrix.Allows(menuCode, action), nil
}

/*
UserPermissions returns the fully resolved matrix for a user.

Description: For super_admin the matrix is synthesized as allow-all over the
current menu set, so clients can render capability lists uniformly.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole

Returns:
  - PermissionSet: menu code → action → allowed
  - error: Resolution failures
*/
func (service *Service) UserPermissions(context context.Context, userID string, role sec.UserRole) (PermissionSet, error) {
	if role == sec.RoleSuperAdmin {
		return service.allowAllMatrix(context)
	}
	return service.resolveMatrix(context, userID, role)
}

/*
UserMenuActions returns the allowed actions for one menu node.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole
  - menuCode: string

Returns:
  - []sec.Action: Allowed actions in enum order (empty = no access)
  - error: apperr.NotFound for an unknown menu, or resolution failures
*/
func (service *Service) UserMenuActions(context context.Context, userID string, role sec.UserRole, menuCode string) ([]sec.Action, error) {

	// The menu must exist; access checks on ghosts would leak nothing useful
	if _, err := service.menus.FindByCode(context, menuCode); err != nil {
		return nil, err
	}

	if role == sec.RoleSuperAdmin {
		return sec.Actions(), nil
	}

	matrix, err := service.resolveMatrix(context, userID, role)
	if err != nil {
		return nil, err
	}

	return matrix.AllowedActions(menuCode), nil
}

/*
UserMenus returns the filtered, localized navigation tree for a user.

Description: A node appears iff the user holds view on it or on any of its
descendants; ancestors of a visible node stay visible so the tree never has
orphans. Labels resolve through the requested locale with fallback to the
default locale, then the raw name.

Parameters:
  - context: context.Context
  - userID: string
  - role: sec.UserRole
  - locale: string (BCP 47; invalid input falls back to the default)

Returns:
  - []*MenuNode: Root nodes of the filtered tree, sort order applied
  - error: Resolution failures
*/
func (service *Service) UserMenus(context context.Context, userID string, role sec.UserRole, locale string) ([]*MenuNode, error) {
	menus, err := service.menus.List(context)
	if err != nil {
		return nil, err
	}

	var matrix PermissionSet
	if role != sec.RoleSuperAdmin {
		matrix, err = service.resolveMatrix(context, userID, role)
		if err != nil {
			return nil, err
		}
	}

	normalized := NormalizeLocale(locale)

	// 1. Materialize every node with its resolved label and actions
	nodesByID := make(map[string]*MenuNode, len(menus))
	parentOf := make(map[string]*string, len(menus))
	for index := range menus {
		menu := &menus[index]

		var actions []sec.Action
		if role == sec.RoleSuperAdmin {
			actions = sec.Actions()
		} else {
			actions = matrix.AllowedActions(menu.Code)
		}

		nodesByID[menu.ID] = &MenuNode{
			ID:        menu.ID,
			Code:      menu.Code,
			Label:     menu.Label(normalized),
			SortOrder: menu.SortOrder,
			Actions:   actions,
		}
		parentOf[menu.ID] = menu.ParentID
	}

	// 2. Link children to parents; unknown parents become roots
	var roots []*MenuNode
	for id, node := range nodesByID {
		parentID := parentOf[id]
		if parentID != nil {
			if parent, ok := nodesByID[*parentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	// 3. Prune branches without view access, keeping ancestor chains
	roots = pruneInvisible(roots)
	sortNodes(roots)

	return roots, nil
}

// pruneInvisible drops nodes the user cannot see. A node survives when it
// carries view itself or any surviving child does.
func pruneInvisible(nodes []*MenuNode) []*MenuNode {
	var visible []*MenuNode
	for _, node := range nodes {
		node.Children = pruneInvisible(node.Children)
		if hasAction(node.Actions, sec.ActionView) || len(node.Children) > 0 {
			visible = append(visible, node)
		}
	}
	return visible
}

func hasAction(actions []sec.Action, wanted sec.Action) bool {
	for _, action := range actions {
		if action == wanted {
			return true
		}
	}
	return false
}

// NormalizeLocale reduces an arbitrary BCP 47 tag to the base language used
// as a label key ("en-US" → "en"). Unparseable input falls back to the
// default locale.
func NormalizeLocale(locale string) string {
	if locale == "" {
		return DefaultLocale
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLocale
	}

	base, _ := tag.Base()
	return base.String()
}

// # Matrix Assembly

// resolveMatrix loads the user's matrix through the cache, assembling it from
// role grants and user overrides on a miss.
func (service *Service) resolveMatrix(context context.Context, userID string, role sec.UserRole) (PermissionSet, error) {

	// 1. Cache first; read errors fall through to the store
	matrix, observed, hit, err := service.cache.GetMatrix(context, userID, role)
	cacheable := err == nil
	if err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "rbac_cache_read_failed",
			slog.String("user_id", userID), slog.Any("error", err))
	} else if hit {
		return matrix, nil
	}

	// 2. Role grants form the base layer
	grants, err := service.permissions.GrantsForRole(context, string(role))
	if err != nil {
		return nil, fmt.Errorf("rbac_service_grants_failed: %w", err)
	}

	matrix = PermissionSet{}
	for _, grant := range grants {
		cell(matrix, grant.MenuCode)[string(grant.Action)] = grant.Allowed
	}

	// 3. Override cells are final for their exact triple
	overrides, err := service.permissions.OverridesForUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac_service_overrides_failed: %w", err)
	}

	for _, override := range overrides {
		cell(matrix, override.MenuCode)[string(override.Action)] = override.Allowed
	}

	// 4. Repopulate under the generations observed at read time, so a bump
	// that raced this resolution orphans the write. Failures are advisory.
	if cacheable {
		if err := service.cache.SetMatrix(context, userID, role, matrix, observed); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "rbac_cache_write_failed",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	return matrix, nil
}

func cell(matrix PermissionSet, menuCode string) map[string]bool {
	actions, ok := matrix[menuCode]
	if !ok {
		actions = make(map[string]bool, 4)
		matrix[menuCode] = actions
	}
	return actions
}

// allowAllMatrix synthesizes the super_admin view of the current menu set.
func (service *Service) allowAllMatrix(context context.Context) (PermissionSet, error) {
	menus, err := service.menus.List(context)
	if err != nil {
		return nil, err
	}

	matrix := PermissionSet{}
	for _, menu := range menus {
		actions := cell(matrix, menu.Code)
		for _, action := range sec.Actions() {
			actions[string(action)] = true
		}
	}

	return matrix, nil
}

// # Role Management

// RoleInput holds the mutable fields of a role.
type RoleInput struct {
	Code  string
	Name  string
	Level int
}

// ListRoles returns every privilege tier.
func (service *Service) ListRoles(context context.Context) ([]Role, error) {
	return service.roles.List(context)
}

/*
CreateRole adds a new privilege tier.

Parameters:
  - context: context.Context
  - input: RoleInput

Returns:
  - *Role: Created entity
  - error: apperr.Conflict on duplicate code, or storage errors
*/
func (service *Service) CreateRole(context context.Context, input RoleInput) (*Role, error) {
	now := time.Now()
	role := &Role{
		Code:      input.Code,
		Name:      input.Name,
		Level:     input.Level,
		IsSystem:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := service.roles.Insert(context, role); err != nil {
		return nil, err
	}

	if err := service.cache.BumpGlobal(context); err != nil {
		return nil, err
	}

	return role, nil
}

/*
UpdateRole modifies the name and level of a tier.

System roles accept updates; only deletion is protected.

Parameters:
  - context: context.Context
  - input: RoleInput (Code selects the role)

Returns:
  - *Role: Updated entity
  - error: apperr.NotFound or storage errors
*/
func (service *Service) UpdateRole(context context.Context, input RoleInput) (*Role, error) {
	role, err := service.roles.FindByCode(context, input.Code)
	if err != nil {
		return nil, err
	}

	role.Name = input.Name
	role.Level = input.Level

	if err := service.roles.Update(context, role); err != nil {
		return nil, err
	}

	if err := service.cache.BumpGlobal(context); err != nil {
		return nil, err
	}

	return role, nil
}

/*
DeleteRole removes a non-system tier and its grant cells.

Parameters:
  - context: context.Context
  - code: string

Returns:
  - error: apperr.Forbidden for system roles, apperr.NotFound, apperr.Conflict
    while accounts still hold the role, or storage errors
*/
func (service *Service) DeleteRole(context context.Context, code string) error {
	role, err := service.roles.FindByCode(context, code)
	if err != nil {
		return err
	}

	if role.IsSystem {
		return apperr.Forbidden("System roles cannot be deleted")
	}

	if err := service.roles.Delete(context, code); err != nil {
		return err
	}

	return service.cache.BumpGlobal(context)
}

// # Menu Management

// MenuInput holds the mutable fields of a menu node.
type MenuInput struct {
	Code      string
	Name      string
	ParentID  *string
	Labels    map[string]string
	SortOrder int
}

// ListMenus returns the full unfiltered tree for administration screens.
func (service *Service) ListMenus(context context.Context) ([]Menu, error) {
	return service.menus.List(context)
}

/*
CreateMenu adds a navigation node.

Description: An empty code is derived from the name via slug normalization,
so "User Management" becomes "user-management".

Parameters:
  - context: context.Context
  - input: MenuInput

Returns:
  - *Menu: Created entity
  - error: apperr.Conflict on duplicate code, or storage errors
*/
func (service *Service) CreateMenu(context context.Context, input MenuInput) (*Menu, error) {
	code := input.Code
	if code == "" {
		code = slug.From(input.Name)
	}

	menu := &Menu{
		ID:        uuidv7.New(),
		ParentID:  input.ParentID,
		Code:      code,
		Name:      input.Name,
		Labels:    input.Labels,
		SortOrder: input.SortOrder,
		CreatedAt: time.Now(),
	}

	if err := service.menus.Insert(context, menu); err != nil {
		return nil, err
	}

	if err := service.cache.BumpGlobal(context); err != nil {
		return nil, err
	}

	return menu, nil
}

/*
UpdateMenu modifies a node's name, labels, parent, and sort order.

Parameters:
  - context: context.Context
  - input: MenuInput (Code selects the node and is immutable)

Returns:
  - *Menu: Updated entity
  - error: apperr.NotFound or storage errors
*/
func (service *Service) UpdateMenu(context context.Context, input MenuInput) (*Menu, error) {
	menu, err := service.menus.FindByCode(context, input.Code)
	if err != nil {
		return nil, err
	}

	menu.Name = input.Name
	menu.Labels = input.Labels
	menu.ParentID = input.ParentID
	menu.SortOrder = input.SortOrder

	if err := service.menus.Update(context, menu); err != nil {
		return nil, err
	}

	if err := service.cache.BumpGlobal(context); err != nil {
		return nil, err
	}

	return menu, nil
}

// DeleteMenu removes a leaf node and bumps the global generation.
func (service *Service) DeleteMenu(context context.Context, code string) error {
	if err := service.menus.Delete(context, code); err != nil {
		return err
	}
	return service.cache.BumpGlobal(context)
}

// # Grant & Override Management

/*
SetRolePermission upserts one role grant cell.

Parameters:
  - context: context.Context
  - grant: RolePermission (role and menu must exist)

Returns:
  - error: apperr.NotFound for unknown role/menu, or storage errors
*/
func (service *Service) SetRolePermission(context context.Context, grant RolePermission) error {
	if _, err := service.roles.FindByCode(context, grant.RoleCode); err != nil {
		return err
	}
	if _, err := service.menus.FindByCode(context, grant.MenuCode); err != nil {
		return err
	}

	if err := service.permissions.SetRoleGrant(context, grant); err != nil {
		return err
	}

	return service.cache.BumpGlobal(context)
}

// DeleteRolePermission removes one grant cell, restoring default deny.
func (service *Service) DeleteRolePermission(context context.Context, roleCode, menuCode string, action sec.Action) error {
	if err := service.permissions.DeleteRoleGrant(context, roleCode, menuCode, action); err != nil {
		return err
	}
	return service.cache.BumpGlobal(context)
}

/*
SetUserOverride upserts one per-user adjustment cell.

Parameters:
  - context: context.Context
  - override: UserOverride (menu must exist)

Returns:
  - error: apperr.NotFound for an unknown menu, or storage errors
*/
func (service *Service) SetUserOverride(context context.Context, override UserOverride) error {
	if _, err := service.menus.FindByCode(context, override.MenuCode); err != nil {
		return err
	}

	if err := service.permissions.SetUserOverride(context, override); err != nil {
		return err
	}

	return service.cache.BumpUser(context, override.UserID)
}

// DeleteUserOverride removes one adjustment cell, restoring the role decision.
func (service *Service) DeleteUserOverride(context context.Context, userID, menuCode string, action sec.Action) error {
	if err := service.permissions.DeleteUserOverride(context, userID, menuCode, action); err != nil {
		return err
	}
	return service.cache.BumpUser(context, userID)
}
