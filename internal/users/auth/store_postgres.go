// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package auth (Postgres) implements the storage layer for identity data.

It provides PostgreSQL implementations for account credentials and the
refresh token rotation chains.

# Schema Table Mapping
  - iam.account: Master identity and credential data.
  - iam.refreshtoken: Rotation chain links, hashes only.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkframe/inkframe/internal/platform/database/schema"
	"github.com/inkframe/inkframe/internal/platform/dberr"
	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Repository Implementations

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new Postgres implementation for account storage.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// PostgresRefreshTokenRepository implements [RefreshTokenRepository] using pgx.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new Postgres implementation for rotation chains.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// # UserRepository Methods

/*
Insert stores a new account row in iam.account.

Parameters:
  - context: context.Context
  - user: *User (ID must be pre-assigned)

Returns:
  - error: apperr.Conflict on duplicate email, or execution failure
*/
func (repository *PostgresUserRepository) Insert(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		schema.Account.Table,
		schema.Account.ID, schema.Account.Email, schema.Account.PasswordHash,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.Status,
		schema.Account.IsActive, schema.Account.CreatedAt, schema.Account.UpdatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		string(user.Role),
		string(user.Status),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "Account")
	}

	return nil
}

/*
FindByEmail retrieves an account row by its unique email address.

Soft-deleted rows are excluded so a deleted account can never authenticate.

Parameters:
  - context: context.Context
  - email: string (normalized lowercase)

Returns:
  - *User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.Account.ID, schema.Account.Email, schema.Account.PasswordHash,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.Status,
		schema.Account.IsActive, schema.Account.LastLoginAt, schema.Account.CreatedAt,
		schema.Account.UpdatedAt,
		schema.Account.Table,
		schema.Account.Email, schema.Account.DeletedAt,
	)

	return repository.scanOne(context, query, email)
}

/*
FindByID retrieves an account row by primary key.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.Account.ID, schema.Account.Email, schema.Account.PasswordHash,
		schema.Account.DisplayName, schema.Account.Role, schema.Account.Status,
		schema.Account.IsActive, schema.Account.LastLoginAt, schema.Account.CreatedAt,
		schema.Account.UpdatedAt,
		schema.Account.Table,
		schema.Account.ID, schema.Account.DeletedAt,
	)

	return repository.scanOne(context, query, id)
}

// scanOne executes a single-row account query and hydrates the entity.
func (repository *PostgresUserRepository) scanOne(context context.Context, query string, arg any) (*User, error) {
	user := &User{}
	var role, status string

	err := repository.pool.QueryRow(context, query, arg).Scan(
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
		return nil, dberr.Wrap(err, "Account")
	}

	user.Role = sec.UserRole(role)
	user.Status = AccountStatus(status)

	return user, nil
}

/*
UpdateLastLogin records the timestamp of a successful authentication.

Parameters:
  - context: context.Context
  - id: string
  - at: time.Time

Returns:
  - error: Execution failures
*/
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $2 WHERE %s = $1`,
		schema.Account.Table, schema.Account.LastLoginAt, schema.Account.UpdatedAt, schema.Account.ID)

	_, err := repository.pool.Exec(context, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_last_login_failed: %w", err)
	}

	return nil
}

/*
UpdatePasswordHash replaces the stored credential for an account.

Parameters:
  - context: context.Context
  - id: string
  - passwordHash: string (bcrypt digest)

Returns:
  - error: Execution failures
*/
func (repository *PostgresUserRepository) UpdatePasswordHash(context context.Context, id, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.Account.Table, schema.Account.PasswordHash, schema.Account.UpdatedAt,
		schema.Account.ID, schema.Account.DeletedAt)

	_, err := repository.pool.Exec(context, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

// # RefreshTokenRepository Methods

/*
Insert stores a freshly issued refresh token row.

Parameters:
  - context: context.Context
  - token: *RefreshToken (ID and ChainID pre-assigned)

Returns:
  - error: Execution failures
*/
func (repository *PostgresRefreshTokenRepository) Insert(context context.Context, token *RefreshToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schema.RefreshToken.Table,
		schema.RefreshToken.ID, schema.RefreshToken.UserID, schema.RefreshToken.ChainID,
		schema.RefreshToken.TokenHash, schema.RefreshToken.RememberMe,
		schema.RefreshToken.IssuedAt, schema.RefreshToken.ExpiresAt,
	)

	_, err := repository.pool.Exec(context, query,
		token.ID,
		token.UserID,
		token.ChainID,
		token.TokenHash,
		token.RememberMe,
		token.IssuedAt,
		token.ExpiresAt,
	)

	if err != nil {
		return dberr.Wrap(err, "RefreshToken")
	}

	return nil
}

/*
FindByHash loads a refresh token row by its SHA-256 hash, regardless of state.

Parameters:
  - context: context.Context
  - tokenHash: string (hex digest)

Returns:
  - *RefreshToken: The matching row in any lifecycle state
  - error: ErrTokenNotFound or execution failure
*/
func (repository *PostgresRefreshTokenRepository) FindByHash(context context.Context, tokenHash string) (*RefreshToken, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.RefreshToken.ID, schema.RefreshToken.UserID, schema.RefreshToken.ChainID,
		schema.RefreshToken.TokenHash, schema.RefreshToken.RememberMe,
		schema.RefreshToken.IssuedAt, schema.RefreshToken.ExpiresAt,
		schema.RefreshToken.ConsumedAt, schema.RefreshToken.RevokedAt,
		schema.RefreshToken.Table,
		schema.RefreshToken.TokenHash,
	)

	token := &RefreshToken{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.ChainID,
		&token.TokenHash,
		&token.RememberMe,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("postgres_token_repo_find_by_hash_failed: %w", err)
	}

	return token, nil
}

/*
ConsumeAndReplace atomically exchanges a live refresh token for its successor.

Description: A single transaction performs a conditional UPDATE that marks the
row consumed ONLY if it is still live (unconsumed, unrevoked, unexpired), then
inserts the successor row. Under concurrent exchange of the same token exactly
one transaction wins the UPDATE; the loser observes zero rows and receives a
classification error without writing anything.

Parameters:
  - context: context.Context
  - tokenHash: string (hash of the presented token)
  - successor: *RefreshToken (ID, UserID, TokenHash, IssuedAt, ExpiresAt set;
    ChainID and RememberMe are inherited from the consumed row)

Returns:
  - *RefreshToken: The consumed predecessor
  - error: ErrTokenNotFound / ErrTokenConsumed / ErrTokenRevoked /
    ErrTokenExpired, or execution failure
*/
func (repository *PostgresRefreshTokenRepository) ConsumeAndReplace(context context.Context, tokenHash string, successor *RefreshToken) (*RefreshToken, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres_token_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	// 1. Conditionally consume the live row. The WHERE clause is the whole
	//    single-use guarantee: a consumed, revoked, or expired row never matches.
	consumeQuery := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2
		WHERE %s = $1 AND %s IS NULL AND %s IS NULL AND %s > $2
		RETURNING %s, %s, %s, %s, %s, %s, %s`,
		schema.RefreshToken.Table,
		schema.RefreshToken.ConsumedAt,
		schema.RefreshToken.TokenHash, schema.RefreshToken.ConsumedAt,
		schema.RefreshToken.RevokedAt, schema.RefreshToken.ExpiresAt,
		schema.RefreshToken.ID, schema.RefreshToken.UserID, schema.RefreshToken.ChainID,
		schema.RefreshToken.TokenHash, schema.RefreshToken.RememberMe,
		schema.RefreshToken.IssuedAt, schema.RefreshToken.ExpiresAt,
	)

	now := time.Now()
	predecessor := &RefreshToken{ConsumedAt: &now}

	err = transaction.QueryRow(context, consumeQuery, tokenHash, now).Scan(
		&predecessor.ID,
		&predecessor.UserID,
		&predecessor.ChainID,
		&predecessor.TokenHash,
		&predecessor.RememberMe,
		&predecessor.IssuedAt,
		&predecessor.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 2. Nothing was consumed. Classify why outside the transaction.
			return nil, repository.classifyDeadToken(context, tokenHash)
		}
		return nil, fmt.Errorf("postgres_token_repo_consume_failed: %w", err)
	}

	// 3. Append the successor to the same chain with the same lifetime class.
	successor.UserID = predecessor.UserID
	successor.ChainID = predecessor.ChainID
	successor.RememberMe = predecessor.RememberMe
	if successor.ExpiresAt.IsZero() {
		lifetime := RefreshTokenTTL
		if predecessor.RememberMe {
			lifetime = RememberMeRefreshTokenTTL
		}
		successor.ExpiresAt = successor.IssuedAt.Add(lifetime)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schema.RefreshToken.Table,
		schema.RefreshToken.ID, schema.RefreshToken.UserID, schema.RefreshToken.ChainID,
		schema.RefreshToken.TokenHash, schema.RefreshToken.RememberMe,
		schema.RefreshToken.IssuedAt, schema.RefreshToken.ExpiresAt,
	)

	_, err = transaction.Exec(context, insertQuery,
		successor.ID,
		successor.UserID,
		successor.ChainID,
		successor.TokenHash,
		successor.RememberMe,
		successor.IssuedAt,
		successor.ExpiresAt,
	)

	if err != nil {
		return nil, fmt.Errorf("postgres_token_repo_replace_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres_token_repo_commit_failed: %w", err)
	}

	return predecessor, nil
}

// classifyDeadToken explains why a token failed the conditional consume.
//
// The distinction matters: a consumed token is a reuse signal that must
// revoke the chain, while an unknown or expired one is merely invalid.
func (repository *PostgresRefreshTokenRepository) classifyDeadToken(context context.Context, tokenHash string) error {
	token, err := repository.FindByHash(context, tokenHash)
	if err != nil {
		return err
	}

	switch {
	case token.RevokedAt != nil:
		return ErrTokenRevoked
	case token.ConsumedAt != nil:
		return ErrTokenConsumed
	case !time.Now().Before(token.ExpiresAt):
		return ErrTokenExpired
	default:
		// The row became live between the failed consume and this read.
		// Treat as not found; the client will simply retry.
		return ErrTokenNotFound
	}
}

/*
RevokeChain revokes every live token belonging to one rotation chain.

Parameters:
  - context: context.Context
  - chainID: string

Returns:
  - int64: Number of rows revoked
  - error: Execution failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeChain(context context.Context, chainID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		schema.RefreshToken.Table,
		schema.RefreshToken.RevokedAt,
		schema.RefreshToken.ChainID, schema.RefreshToken.RevokedAt,
	)

	tag, err := repository.pool.Exec(context, query, chainID)
	if err != nil {
		return 0, fmt.Errorf("postgres_token_repo_revoke_chain_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
RevokeAllForUser revokes every live token the user holds, across all chains.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Number of rows revoked
  - error: Execution failures
*/
func (repository *PostgresRefreshTokenRepository) RevokeAllForUser(context context.Context, userID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		schema.RefreshToken.Table,
		schema.RefreshToken.RevokedAt,
		schema.RefreshToken.UserID, schema.RefreshToken.RevokedAt,
	)

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_token_repo_revoke_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
DeleteExpired purges token rows whose expiry is older than the cutoff.

Called periodically by the background sweeper; correctness never depends on
it because the conditional consume already ignores expired rows.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - int64: Number of rows removed
  - error: Execution failures
*/
func (repository *PostgresRefreshTokenRepository) DeleteExpired(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.RefreshToken.Table, schema.RefreshToken.ExpiresAt)

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_token_repo_delete_expired_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
