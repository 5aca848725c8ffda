// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package rbac (Postgres) implements the storage layer for the permission graph.

# Schema Table Mapping
  - iam.role: Privilege tiers.
  - iam.menu: Navigation tree with jsonb locale labels.
  - iam.rolepermission: Default grant cells.
  - iam.useroverride: Per-user adjustment cells.
*/
package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/database/schema"
	"github.com/inkframe/inkframe/internal/platform/dberr"
	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Repository Implementations

// PostgresRoleRepository implements [RoleRepository] using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new Postgres implementation for roles.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// PostgresMenuRepository implements [MenuRepository] using pgx.
type PostgresMenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository creates a new Postgres implementation for the menu tree.
func NewMenuRepository(pool *pgxpool.Pool) *PostgresMenuRepository {
	return &PostgresMenuRepository{pool: pool}
}

// PostgresPermissionRepository implements [PermissionRepository] using pgx.
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new Postgres implementation for matrix cells.
func NewPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

// # RoleRepository Methods

/*
List returns every role ordered by privilege level.

Parameters:
  - context: context.Context

Returns:
  - []Role: All tiers, most privileged first
  - error: Execution failures
*/
func (repository *PostgresRoleRepository) List(context context.Context) ([]Role, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s ASC, %s ASC`,
		schema.Role.Code, schema.Role.Name, schema.Role.Level,
		schema.Role.IsSystem, schema.Role.CreatedAt, schema.Role.UpdatedAt,
		schema.Role.Table,
		schema.Role.Level, schema.Role.Code,
	)

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Code, &role.Name, &role.Level, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

/*
FindByCode loads one role by its primary key.

Parameters:
  - context: context.Context
  - code: string

Returns:
  - *Role: Hydrated entity
  - error: apperr.NotFound or execution failure
*/
func (repository *PostgresRoleRepository) FindByCode(context context.Context, code string) (*Role, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.Role.Code, schema.Role.Name, schema.Role.Level,
		schema.Role.IsSystem, schema.Role.CreatedAt, schema.Role.UpdatedAt,
		schema.Role.Table,
		schema.Role.Code,
	)

	role := &Role{}
	err := repository.pool.QueryRow(context, query, code).Scan(
		&role.Code, &role.Name, &role.Level, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "Role")
	}

	return role, nil
}

// Insert stores a new role.
func (repository *PostgresRoleRepository) Insert(context context.Context, role *Role) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		schema.Role.Table,
		schema.Role.Code, schema.Role.Name, schema.Role.Level,
		schema.Role.IsSystem, schema.Role.CreatedAt, schema.Role.UpdatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		role.Code, role.Name, role.Level, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, "Role")
	}

	return nil
}

// Update modifies the mutable role fields.
func (repository *PostgresRoleRepository) Update(context context.Context, role *Role) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = NOW()
		WHERE %s = $1`,
		schema.Role.Table,
		schema.Role.Name, schema.Role.Level, schema.Role.UpdatedAt,
		schema.Role.Code,
	)

	tag, err := repository.pool.Exec(context, query, role.Code, role.Name, role.Level)
	if err != nil {
		return dberr.Wrap(err, "Role")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Role")
	}

	return nil
}

// Delete removes a role and, via cascade, its grant cells.
func (repository *PostgresRoleRepository) Delete(context context.Context, code string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.Role.Table, schema.Role.Code)

	tag, err := repository.pool.Exec(context, query, code)
	if err != nil {
		return dberr.Wrap(err, "Role")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Role")
	}

	return nil
}

// # MenuRepository Methods

/*
List returns the whole menu tree flattened, ordered by sort order.

Parameters:
  - context: context.Context

Returns:
  - []Menu: Every node; tree assembly happens in the service
  - error: Execution failures
*/
func (repository *PostgresMenuRepository) List(context context.Context) ([]Menu, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s ASC, %s ASC`,
		schema.Menu.ID, schema.Menu.ParentID, schema.Menu.Code, schema.Menu.Name,
		schema.Menu.Labels, schema.Menu.SortOrder, schema.Menu.CreatedAt,
		schema.Menu.Table,
		schema.Menu.SortOrder, schema.Menu.Code,
	)

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_menu_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		var menu Menu
		if err := rows.Scan(&menu.ID, &menu.ParentID, &menu.Code, &menu.Name,
			&menu.Labels, &menu.SortOrder, &menu.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_menu_repo_scan_failed: %w", err)
		}
		menus = append(menus, menu)
	}

	return menus, rows.Err()
}

// FindByCode loads one menu node by its unique slug code.
func (repository *PostgresMenuRepository) FindByCode(context context.Context, code string) (*Menu, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.Menu.ID, schema.Menu.ParentID, schema.Menu.Code, schema.Menu.Name,
		schema.Menu.Labels, schema.Menu.SortOrder, schema.Menu.CreatedAt,
		schema.Menu.Table,
		schema.Menu.Code,
	)

	menu := &Menu{}
	err := repository.pool.QueryRow(context, query, code).Scan(
		&menu.ID, &menu.ParentID, &menu.Code, &menu.Name,
		&menu.Labels, &menu.SortOrder, &menu.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "Menu")
	}

	return menu, nil
}

// Insert stores a new menu node. Labels marshal into the jsonb column.
func (repository *PostgresMenuRepository) Insert(context context.Context, menu *Menu) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schema.Menu.Table,
		schema.Menu.ID, schema.Menu.ParentID, schema.Menu.Code, schema.Menu.Name,
		schema.Menu.Labels, schema.Menu.SortOrder, schema.Menu.CreatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		menu.ID, menu.ParentID, menu.Code, menu.Name, menu.Labels, menu.SortOrder, menu.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "Menu")
	}

	return nil
}

// Update modifies name, labels, parent, and sort order of a node.
func (repository *PostgresMenuRepository) Update(context context.Context, menu *Menu) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5
		WHERE %s = $1`,
		schema.Menu.Table,
		schema.Menu.Name, schema.Menu.Labels, schema.Menu.ParentID, schema.Menu.SortOrder,
		schema.Menu.Code,
	)

	tag, err := repository.pool.Exec(context, query,
		menu.Code, menu.Name, menu.Labels, menu.ParentID, menu.SortOrder)
	if err != nil {
		return dberr.Wrap(err, "Menu")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Menu")
	}

	return nil
}

// Delete removes a leaf node. The parentid FK makes deleting a node with
// children fail as a conflict.
func (repository *PostgresMenuRepository) Delete(context context.Context, code string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.Menu.Table, schema.Menu.Code)

	tag, err := repository.pool.Exec(context, query, code)
	if err != nil {
		return dberr.Wrap(err, "Menu")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Menu")
	}

	return nil
}

// # PermissionRepository Methods

/*
GrantsForRole returns every grant cell held by one role.

Parameters:
  - context: context.Context
  - roleCode: string

Returns:
  - []RolePermission: All cells, allowed and denied
  - error: Execution failures
*/
func (repository *PostgresPermissionRepository) GrantsForRole(context context.Context, roleCode string) ([]RolePermission, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.RolePermission.RoleCode, schema.RolePermission.MenuCode,
		schema.RolePermission.Action, schema.RolePermission.Allowed,
		schema.RolePermission.CreatedAt,
		schema.RolePermission.Table,
		schema.RolePermission.RoleCode,
	)

	rows, err := repository.pool.Query(context, query, roleCode)
	if err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_grants_failed: %w", err)
	}
	defer rows.Close()

	var grants []RolePermission
	for rows.Next() {
		var grant RolePermission
		var action string
		if err := rows.Scan(&grant.RoleCode, &grant.MenuCode, &action, &grant.Allowed, &grant.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_permission_repo_scan_failed: %w", err)
		}
		grant.Action = sec.Action(action)
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

/*
OverridesForUser returns every override cell held by one user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []UserOverride: All cells, allowed and denied
  - error: Execution failures
*/
func (repository *PostgresPermissionRepository) OverridesForUser(context context.Context, userID string) ([]UserOverride, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserOverride.UserID, schema.UserOverride.MenuCode,
		schema.UserOverride.Action, schema.UserOverride.Allowed,
		schema.UserOverride.CreatedAt,
		schema.UserOverride.Table,
		schema.UserOverride.UserID,
	)

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_overrides_failed: %w", err)
	}
	defer rows.Close()

	var overrides []UserOverride
	for rows.Next() {
		var override UserOverride
		var action string
		if err := rows.Scan(&override.UserID, &override.MenuCode, &action, &override.Allowed, &override.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_permission_repo_scan_failed: %w", err)
		}
		override.Action = sec.Action(action)
		overrides = append(overrides, override)
	}

	return overrides, rows.Err()
}

// SetRoleGrant upserts one role grant cell.
func (repository *PostgresPermissionRepository) SetRoleGrant(context context.Context, grant RolePermission) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%s, %s, %s) DO UPDATE SET %s = EXCLUDED.%s`,
		schema.RolePermission.Table,
		schema.RolePermission.RoleCode, schema.RolePermission.MenuCode,
		schema.RolePermission.Action, schema.RolePermission.Allowed,
		schema.RolePermission.CreatedAt,
		schema.RolePermission.RoleCode, schema.RolePermission.MenuCode, schema.RolePermission.Action,
		schema.RolePermission.Allowed, schema.RolePermission.Allowed,
	)

	_, err := repository.pool.Exec(context, query,
		grant.RoleCode, grant.MenuCode, string(grant.Action), grant.Allowed, time.Now())
	if err != nil {
		return dberr.Wrap(err, "RolePermission")
	}

	return nil
}

// DeleteRoleGrant removes one role grant cell.
func (repository *PostgresPermissionRepository) DeleteRoleGrant(context context.Context, roleCode, menuCode string, action sec.Action) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		schema.RolePermission.Table,
		schema.RolePermission.RoleCode, schema.RolePermission.MenuCode, schema.RolePermission.Action)

	_, err := repository.pool.Exec(context, query, roleCode, menuCode, string(action))
	if err != nil {
		return dberr.Wrap(err, "RolePermission")
	}

	return nil
}

// SetUserOverride upserts one user override cell.
func (repository *PostgresPermissionRepository) SetUserOverride(context context.Context, override UserOverride) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%s, %s, %s) DO UPDATE SET %s = EXCLUDED.%s`,
		schema.UserOverride.Table,
		schema.UserOverride.UserID, schema.UserOverride.MenuCode,
		schema.UserOverride.Action, schema.UserOverride.Allowed,
		schema.UserOverride.CreatedAt,
		schema.UserOverride.UserID, schema.UserOverride.MenuCode, schema.UserOverride.Action,
		schema.UserOverride.Allowed, schema.UserOverride.Allowed,
	)

	_, err := repository.pool.Exec(context, query,
		override.UserID, override.MenuCode, string(override.Action), override.Allowed, time.Now())
	if err != nil {
		return dberr.Wrap(err, "UserOverride")
	}

	return nil
}

// DeleteUserOverride removes one override cell.
func (repository *PostgresPermissionRepository) DeleteUserOverride(context context.Context, userID, menuCode string, action sec.Action) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		schema.UserOverride.Table,
		schema.UserOverride.UserID, schema.UserOverride.MenuCode, schema.UserOverride.Action)

	_, err := repository.pool.Exec(context, query, userID, menuCode, string(action))
	if err != nil {
		return dberr.Wrap(err, "UserOverride")
	}

	return nil
}
