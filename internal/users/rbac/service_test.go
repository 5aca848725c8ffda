// Copyright (c) 2026 Inkframe. All rights reserved.

package rbac_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/rbac"
)

// # In-Memory Fakes

type fakeRoleRepo struct {
	byCode map[string]*rbac.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{byCode: make(map[string]*rbac.Role)}
}

func (repo *fakeRoleRepo) List(context.Context) ([]rbac.Role, error) {
	var roles []rbac.Role
	for _, role := range repo.byCode {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (repo *fakeRoleRepo) FindByCode(_ context.Context, code string) (*rbac.Role, error) {
	role, ok := repo.byCode[code]
	if !ok {
		return nil, apperr.NotFound("Role")
	}
	clone := *role
	return &clone, nil
}

func (repo *fakeRoleRepo) Insert(_ context.Context, role *rbac.Role) error {
	if _, exists := repo.byCode[role.Code]; exists {
		return apperr.Conflict("Role already exists")
	}
	clone := *role
	repo.byCode[role.Code] = &clone
	return nil
}

func (repo *fakeRoleRepo) Update(_ context.Context, role *rbac.Role) error {
	if _, exists := repo.byCode[role.Code]; !exists {
		return apperr.NotFound("Role")
	}
	clone := *role
	repo.byCode[role.Code] = &clone
	return nil
}

func (repo *fakeRoleRepo) Delete(_ context.Context, code string) error {
	if _, exists := repo.byCode[code]; !exists {
		return apperr.NotFound("Role")
	}
	delete(repo.byCode, code)
	return nil
}

type fakeMenuRepo struct {
	byCode map[string]*rbac.Menu
}

func newFakeMenuRepo() *fakeMenuRepo {
	return &fakeMenuRepo{byCode: make(map[string]*rbac.Menu)}
}

func (repo *fakeMenuRepo) List(context.Context) ([]rbac.Menu, error) {
	var menus []rbac.Menu
	for _, menu := range repo.byCode {
		menus = append(menus, *menu)
	}
	return menus, nil
}

func (repo *fakeMenuRepo) FindByCode(_ context.Context, code string) (*rbac.Menu, error) {
	menu, ok := repo.byCode[code]
	if !ok {
		return nil, apperr.NotFound("Menu")
	}
	clone := *menu
	return &clone, nil
}

func (repo *fakeMenuRepo) Insert(_ context.Context, menu *rbac.Menu) error {
	if _, exists := repo.byCode[menu.Code]; exists {
		return apperr.Conflict("Menu already exists")
	}
	clone := *menu
	repo.byCode[menu.Code] = &clone
	return nil
}

func (repo *fakeMenuRepo) Update(_ context.Context, menu *rbac.Menu) error {
	if _, exists := repo.byCode[menu.Code]; !exists {
		return apperr.NotFound("Menu")
	}
	clone := *menu
	repo.byCode[menu.Code] = &clone
	return nil
}

func (repo *fakeMenuRepo) Delete(_ context.Context, code string) error {
	if _, exists := repo.byCode[code]; !exists {
		return apperr.NotFound("Menu")
	}
	delete(repo.byCode, code)
	return nil
}

type cellKey struct {
	subject string
	menu    string
	action  sec.Action
}

type fakePermissionRepo struct {
	grants    map[cellKey]bool
	overrides map[cellKey]bool
}

func newFakePermissionRepo() *fakePermissionRepo {
	return &fakePermissionRepo{
		grants:    make(map[cellKey]bool),
		overrides: make(map[cellKey]bool),
	}
}

func (repo *fakePermissionRepo) GrantsForRole(_ context.Context, roleCode string) ([]rbac.RolePermission, error) {
	var grants []rbac.RolePermission
	for key, allowed := range repo.grants {
		if key.subject == roleCode {
			grants = append(grants, rbac.RolePermission{
				RoleCode: key.subject, MenuCode: key.menu, Action: key.action, Allowed: allowed,
			})
		}
	}
	return grants, nil
}

func (repo *fakePermissionRepo) OverridesForUser(_ context.Context, userID string) ([]rbac.UserOverride, error) {
	var overrides []rbac.UserOverride
	for key, allowed := range repo.overrides {
		if key.subject == userID {
			overrides = append(overrides, rbac.UserOverride{
				UserID: key.subject, MenuCode: key.menu, Action: key.action, Allowed: allowed,
			})
		}
	}
	return overrides, nil
}

func (repo *fakePermissionRepo) SetRoleGrant(_ context.Context, grant rbac.RolePermission) error {
	repo.grants[cellKey{grant.RoleCode, grant.MenuCode, grant.Action}] = grant.Allowed
	return nil
}

func (repo *fakePermissionRepo) DeleteRoleGrant(_ context.Context, roleCode, menuCode string, action sec.Action) error {
	delete(repo.grants, cellKey{roleCode, menuCode, action})
	return nil
}

func (repo *fakePermissionRepo) SetUserOverride(_ context.Context, override rbac.UserOverride) error {
	repo.overrides[cellKey{override.UserID, override.MenuCode, override.Action}] = override.Allowed
	return nil
}

func (repo *fakePermissionRepo) DeleteUserOverride(_ context.Context, userID, menuCode string, action sec.Action) error {
	delete(repo.overrides, cellKey{userID, menuCode, action})
	return nil
}

// fakeMatrixCache mirrors the generation-keyed Redis cache in memory.
type fakeMatrixCache struct {
	globalGen int64
	userGens  map[string]int64
	entries   map[string]rbac.PermissionSet
	hits      int
	misses    int
}

func newFakeMatrixCache() *fakeMatrixCache {
	return &fakeMatrixCache{
		userGens: make(map[string]int64),
		entries:  make(map[string]rbac.PermissionSet),
	}
}

func (cache *fakeMatrixCache) keyFor(userID string, role sec.UserRole, generations rbac.Generations) string {
	return fmt.Sprintf("%s|%s|g%d|u%d", userID, role, generations.Global, generations.User)
}

func (cache *fakeMatrixCache) current(userID string) rbac.Generations {
	return rbac.Generations{Global: cache.globalGen, User: cache.userGens[userID]}
}

func (cache *fakeMatrixCache) GetMatrix(_ context.Context, userID string, role sec.UserRole) (rbac.PermissionSet, rbac.Generations, bool, error) {
	observed := cache.current(userID)
	matrix, ok := cache.entries[cache.keyFor(userID, role, observed)]
	if !ok {
		cache.misses++
		return nil, observed, false, nil
	}
	cache.hits++
	return matrix, observed, true, nil
}

func (cache *fakeMatrixCache) SetMatrix(_ context.Context, userID string, role sec.UserRole, matrix rbac.PermissionSet, observed rbac.Generations) error {
	cache.entries[cache.keyFor(userID, role, observed)] = matrix
	return nil
}

func (cache *fakeMatrixCache) BumpGlobal(context.Context) error {
	cache.globalGen++
	return nil
}

func (cache *fakeMatrixCache) BumpUser(_ context.Context, userID string) error {
	cache.userGens[userID]++
	return nil
}

// # Harness

type testEnv struct {
	service     *rbac.Service
	roles       *fakeRoleRepo
	menus       *fakeMenuRepo
	permissions *fakePermissionRepo
	cache       *fakeMatrixCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		roles:       newFakeRoleRepo(),
		menus:       newFakeMenuRepo(),
		permissions: newFakePermissionRepo(),
		cache:       newFakeMatrixCache(),
	}
	env.service = rbac.NewService(env.roles, env.menus, env.permissions, env.cache)

	// Standard roles
	env.roles.byCode["super_admin"] = &rbac.Role{Code: "super_admin", Name: "Super Admin", Level: 1, IsSystem: true}
	env.roles.byCode["admin"] = &rbac.Role{Code: "admin", Name: "Admin", Level: 2, IsSystem: true}
	env.roles.byCode["user"] = &rbac.Role{Code: "user", Name: "User", Level: 3, IsSystem: true}

	return env
}

func (env *testEnv) addMenu(id, code string, parentID *string, sortOrder int, labels map[string]string) {
	env.menus.byCode[code] = &rbac.Menu{
		ID:        id,
		ParentID:  parentID,
		Code:      code,
		Name:      code,
		Labels:    labels,
		SortOrder: sortOrder,
		CreatedAt: time.Now(),
	}
}

// grant and override go through the service mutations, so the cache sees the
// same synchronous bump it would in production.

func (env *testEnv) grant(t *testing.T, role, menu string, action sec.Action, allowed bool) {
	t.Helper()
	require.NoError(t, env.service.SetRolePermission(context.Background(), rbac.RolePermission{
		RoleCode: role, MenuCode: menu, Action: action, Allowed: allowed,
	}))
}

func (env *testEnv) override(t *testing.T, userID, menu string, action sec.Action, allowed bool) {
	t.Helper()
	require.NoError(t, env.service.SetUserOverride(context.Background(), rbac.UserOverride{
		UserID: userID, MenuCode: menu, Action: action, Allowed: allowed,
	}))
}

func (env *testEnv) check(t *testing.T, userID string, role sec.UserRole, menu string, action sec.Action) bool {
	t.Helper()
	allowed, err := env.service.CheckMenuAction(context.Background(), userID, role, menu, action)
	require.NoError(t, err)
	return allowed
}

// # Decision Precedence

/*
TestService_CheckMenuAction_Precedence verifies the resolver's decision order:
override final, then role grant, then deny.
*/
func TestService_CheckMenuAction_Precedence(t *testing.T) {
	env := newTestEnv(t)
	env.addMenu("m1", "articles", nil, 1, nil)

	env.grant(t, "user", "articles", sec.ActionView, true)
	env.grant(t, "user", "articles", sec.ActionCreate, true)

	// Role grant alone decides
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionCreate))
	assert.False(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionDelete), "ungranted action denies")

	// Override deny beats a role allow for the exact triple only
	env.override(t, "u1", "articles", sec.ActionCreate, false)
	assert.False(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionCreate))
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionView), "sibling action unaffected")
	assert.True(t, env.check(t, "u2", sec.RoleUser, "articles", sec.ActionCreate), "other users unaffected")

	// Override allow grants beyond the role
	env.override(t, "u1", "articles", sec.ActionDelete, true)
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionDelete))

	// Unknown menu and unknown role deny without error
	assert.False(t, env.check(t, "u1", sec.RoleUser, "ghost-menu", sec.ActionView))
	assert.False(t, env.check(t, "u1", sec.UserRole(""), "articles", sec.ActionView))
}

/*
TestService_CheckMenuAction_SuperAdminBypass verifies the bypass sits above
the matrix, overrides included.
*/
func TestService_CheckMenuAction_SuperAdminBypass(t *testing.T) {
	env := newTestEnv(t)
	env.addMenu("m1", "settings", nil, 1, nil)

	// No grants anywhere, an explicit deny override on top
	env.override(t, "boss", "settings", sec.ActionDelete, false)

	assert.True(t, env.check(t, "boss", sec.RoleSuperAdmin, "settings", sec.ActionDelete))
	assert.True(t, env.check(t, "boss", sec.RoleSuperAdmin, "nonexistent", sec.ActionCreate))
}

// # Menu Tree

/*
TestService_UserMenus_FilteredTree verifies view filtering with ancestor
preservation, localization, and ordering.
*/
func TestService_UserMenus_FilteredTree(t *testing.T) {
	env := newTestEnv(t)

	management := "m-management"
	env.addMenu(management, "management", nil, 2, map[string]string{"en": "Management", "vi": "Quản trị"})
	env.addMenu("m-roles", "roles", &management, 1, map[string]string{"en": "Roles"})
	env.addMenu("m-menus", "menus", &management, 2, map[string]string{"en": "Menus"})
	env.addMenu("m-dash", "dashboard", nil, 1, map[string]string{"en": "Dashboard", "vi": "Bảng điều khiển"})

	// The user sees the dashboard and the roles screen; nothing else.
	// No view grant on "management" itself: it must survive as an ancestor.
	env.grant(t, "user", "dashboard", sec.ActionView, true)
	env.grant(t, "user", "roles", sec.ActionView, true)
	env.grant(t, "user", "roles", sec.ActionUpdate, true)

	tree, err := env.service.UserMenus(context.Background(), "u1", sec.RoleUser, "vi")
	require.NoError(t, err)
	require.Len(t, tree, 2)

	// Sort order: dashboard (1) before management (2)
	assert.Equal(t, "dashboard", tree[0].Code)
	assert.Equal(t, "Bảng điều khiển", tree[0].Label)
	assert.Empty(t, tree[0].Children)

	// Ancestor kept despite no view of its own; label falls back to en
	assert.Equal(t, "management", tree[1].Code)
	assert.Equal(t, "Quản trị", tree[1].Label)
	require.Len(t, tree[1].Children, 1, "menus node must be pruned")

	roles := tree[1].Children[0]
	assert.Equal(t, "roles", roles.Code)
	assert.Equal(t, "Roles", roles.Label, "missing vi label falls back to en")
	assert.Equal(t, []sec.Action{sec.ActionView, sec.ActionUpdate}, roles.Actions)
}

/*
TestService_UserMenus_SuperAdminSeesAll verifies the unfiltered tree for the
bypass role.
*/
func TestService_UserMenus_SuperAdminSeesAll(t *testing.T) {
	env := newTestEnv(t)

	parent := "m-parent"
	env.addMenu(parent, "management", nil, 1, nil)
	env.addMenu("m-child", "roles", &parent, 1, nil)

	tree, err := env.service.UserMenus(context.Background(), "boss", sec.RoleSuperAdmin, "en")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, sec.Actions(), tree[0].Children[0].Actions)
}

// # Menu Actions

/*
TestService_UserMenuActions verifies per-menu action listing and unknown-menu
handling.
*/
func TestService_UserMenuActions(t *testing.T) {
	env := newTestEnv(t)
	env.addMenu("m1", "articles", nil, 1, nil)
	env.grant(t, "user", "articles", sec.ActionView, true)
	env.override(t, "u1", "articles", sec.ActionDelete, true)

	actions, err := env.service.UserMenuActions(context.Background(), "u1", sec.RoleUser, "articles")
	require.NoError(t, err)
	assert.Equal(t, []sec.Action{sec.ActionView, sec.ActionDelete}, actions)

	_, err = env.service.UserMenuActions(context.Background(), "u1", sec.RoleUser, "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

// # Cache Invalidation

/*
TestService_CacheInvalidation verifies that mutations take effect
immediately despite the cache.
*/
func TestService_CacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	env.addMenu("m1", "articles", nil, 1, nil)
	env.grant(t, "user", "articles", sec.ActionView, true)

	// Prime the cache, then verify it is actually serving reads
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))
	assert.True(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))
	assert.Equal(t, 1, env.cache.hits)

	// Revoking the grant through the service is visible on the next check
	err := env.service.DeleteRolePermission(context.Background(), "user", "articles", sec.ActionView)
	require.NoError(t, err)
	assert.False(t, env.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))

	// A per-user override bump invalidates only that user
	env2 := newTestEnv(t)
	env2.addMenu("m1", "articles", nil, 1, nil)
	env2.grant(t, "user", "articles", sec.ActionView, true)

	assert.True(t, env2.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))
	assert.True(t, env2.check(t, "u2", sec.RoleUser, "articles", sec.ActionView))

	err = env2.service.SetUserOverride(context.Background(), rbac.UserOverride{
		UserID: "u1", MenuCode: "articles", Action: sec.ActionView, Allowed: false,
	})
	require.NoError(t, err)

	assert.False(t, env2.check(t, "u1", sec.RoleUser, "articles", sec.ActionView))

	hitsBefore := env2.cache.hits
	assert.True(t, env2.check(t, "u2", sec.RoleUser, "articles", sec.ActionView))
	assert.Equal(t, hitsBefore+1, env2.cache.hits, "u2 keeps serving from cache")
}

// # Graph Administration

/*
TestService_DeleteRole_SystemProtected verifies system tiers cannot be
removed.
*/
func TestService_DeleteRole_SystemProtected(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.DeleteRole(context.Background(), "super_admin")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	// Custom roles delete fine
	_, err = env.service.CreateRole(context.Background(), rbac.RoleInput{Code: "editor", Name: "Editor", Level: 5})
	require.NoError(t, err)
	require.NoError(t, env.service.DeleteRole(context.Background(), "editor"))
}

/*
TestService_CreateMenu_SlugCode verifies code derivation from the name.
*/
func TestService_CreateMenu_SlugCode(t *testing.T) {
	env := newTestEnv(t)

	menu, err := env.service.CreateMenu(context.Background(), rbac.MenuInput{Name: "User Management"})
	require.NoError(t, err)
	assert.Equal(t, "user-management", menu.Code)

	// Explicit codes pass through untouched
	menu, err = env.service.CreateMenu(context.Background(), rbac.MenuInput{Code: "reports", Name: "Reports & Stats"})
	require.NoError(t, err)
	assert.Equal(t, "reports", menu.Code)
}

// # Locale Handling

/*
TestNormalizeLocale verifies BCP 47 reduction and fallback.
*/
func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en", "en"},
		{"en-US", "en"},
		{"vi-VN", "vi"},
		{"ja", "ja"},
		{"", "en"},
		{"not a locale!!", "en"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rbac.NormalizeLocale(tt.input), tt.input)
	}
}
