// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package account (Postgres) implements the storage layer for the directory.

# Schema Table Mapping
  - iam.account: Master identity and profile data, shared with the auth
    package. This package owns the operator-facing queries (filtered
    listing, status transitions, soft deletion).
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/database/schema"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/auth"
)

// # Repository Implementation

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for the directory.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
List retrieves a filtered, paginated page of accounts.

Description: Builds the WHERE clause incrementally from the filter. Status
filtering uses = ANY over the requested statuses; the search term matches
email or display name case-insensitively. Soft-deleted rows never appear.

Parameters:
  - context: context.Context
  - filter: ListFilter

Returns:
  - []auth.User: The requested page, newest accounts first
  - int: Total match count across all pages
  - error: Query or scan failures
*/
func (repository *PostgresAccountRepository) List(context context.Context, filter ListFilter) ([]auth.User, int, error) {

	// 1. Assemble filter conditions
	conditions := []string{fmt.Sprintf("%s IS NULL", schema.Account.DeletedAt)}
	arguments := []interface{}{}

	if len(filter.Statuses) > 0 {
		arguments = append(arguments, filter.Statuses)
		conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", schema.Account.Status, len(arguments)))
	}

	if filter.Search != "" {
		arguments = append(arguments, "%"+filter.Search+"%")
		placeholder := len(arguments)
		conditions = append(conditions, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d)",
			schema.Account.Email, placeholder, schema.Account.DisplayName, placeholder))
	}

	whereClause := strings.Join(conditions, " AND ")

	// 2. Total count for pagination metadata
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, schema.Account.Table, whereClause)

	var total int
	if err := repository.pool.QueryRow(context, countQuery, arguments...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_count_failed: %w", err)
	}

	// 3. Page query
	pageQuery := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s
		ORDER BY %s DESC
		LIMIT $%d OFFSET $%d`,
		schema.Account.ID, schema.Account.Email, schema.Account.PasswordHash,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.Status,
		schema.Account.IsActive, schema.Account.LastLoginAt, schema.Account.CreatedAt,
		schema.Account.UpdatedAt,
		schema.Account.Table,
		whereClause,
		schema.Account.CreatedAt,
		len(arguments)+1, len(arguments)+2,
	)
	arguments = append(arguments, filter.Page.Limit, filter.Page.Offset())

	rows, err := repository.pool.Query(context, pageQuery, arguments...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		var user auth.User
		var role, status string
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.DisplayName,
			&role,
			&status,
			&user.IsActive,
			&user.LastLoginAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_scan_failed: %w", err)
		}
		user.Role = sec.UserRole(role)
		user.Status = auth.AccountStatus(status)
		users = append(users, user)
	}

	return users, total, nil
}

/*
FindByID retrieves a user record from the iam.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *auth.User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.Account.ID, schema.Account.Email, schema.Account.PasswordHash,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.Status,
		schema.Account.IsActive, schema.Account.LastLoginAt, schema.Account.CreatedAt,
		schema.Account.UpdatedAt,
		schema.Account.Table, schema.Account.ID, schema.Account.DeletedAt,
	)

	user := &auth.User{}
	var role, status string
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&role,
		&status,
		&user.IsActive,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	user.Role = sec.UserRole(role)
	user.Status = auth.AccountStatus(status)
	return user, nil
}

/*
Update modifies the mutable directory metadata of a user.

Description: This method syncs the DisplayName and Role fields while
refreshing the updatedat timestamp.

Parameters:
  - context: context.Context
  - user: *auth.User

Returns:
  - error: apperr.NotFound or update failures
*/
func (repository *PostgresAccountRepository) Update(context context.Context, user *auth.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4
		WHERE %s = $1 AND %s IS NULL`,
		schema.Account.Table,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.UpdatedAt,
		schema.Account.ID, schema.Account.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query,
		user.ID,
		user.DisplayName,
		string(user.Role),
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
SetStatus changes the lifecycle status of an account.

Parameters:
  - context: context.Context
  - id: string
  - status: auth.AccountStatus

Returns:
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresAccountRepository) SetStatus(context context.Context, id string, status auth.AccountStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3
		WHERE %s = $1 AND %s IS NULL`,
		schema.Account.Table,
		schema.Account.Status, schema.Account.UpdatedAt,
		schema.Account.ID, schema.Account.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query, id, string(status), time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_status_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
SoftDelete flags a user account as logically destroyed.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresAccountRepository) SoftDelete(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.Account.Table, schema.Account.DeletedAt, schema.Account.ID, schema.Account.DeletedAt)

	tag, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_soft_delete_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}
