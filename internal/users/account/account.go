// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package account handles administrative user management.

It provides functionalities for operators to browse the account directory,
adjust display data and roles, suspend or reinstate accounts, and soft-delete
users. Self-service identity (login, profile, password) lives in the auth
package; this package is the operator's view of the same iam.account table.

# Architecture

  - Entities: AdminView (DTO), ListFilter.
  - Domain: This package depends on the auth package for the User entity.
  - Security: Every mutation invalidates the cached profile and, where the
    account loses access, revokes its refresh token chains.
*/
package account

import (
	"context"
	"time"

	"github.com/inkframe/inkframe/internal/users/auth"
	"github.com/inkframe/inkframe/pkg/pagination"
)

// # Domain Entities

// AdminView is the operator-facing projection of an account. Unlike the
// public profile it exposes status, activity and audit timestamps, but never
// the password hash.
type AdminView struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	DisplayName string             `json:"display_name"`
	Role        string             `json:"role"`
	Status      auth.AccountStatus `json:"status"`
	IsActive    bool               `json:"is_active"`
	LastLoginAt *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewAdminView projects a user entity into its operator view.
func NewAdminView(user *auth.User) AdminView {
	return AdminView{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Status:      user.Status,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// ListFilter narrows the account directory listing.
type ListFilter struct {
	// Statuses restricts results to the given account statuses. Empty
	// means all statuses.
	Statuses []string

	// Search matches email or display name, case-insensitively.
	Search string

	// Page holds the requested page window.
	Page pagination.Params
}

// # Repository Contracts

// AccountRepository defines the persistence contract for the directory.
type AccountRepository interface {
	/*
		List retrieves a page of accounts matching the filter, soft-deleted
		accounts excluded.

		Parameters:
		  - context: context.Context
		  - filter: ListFilter

		Returns:
		  - []auth.User: The page of matching accounts
		  - int: Total match count across all pages
		  - error: Storage failures
	*/
	List(context context.Context, filter ListFilter) ([]auth.User, int, error)

	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		Update modifies the mutable directory fields of an existing user
		(display name, role) and refreshes the updated timestamp.

		Parameters:
		  - context: context.Context
		  - user: *auth.User (Hydrated entity with changes)

		Returns:
		  - error: apperr.NotFound or storage failures
	*/
	Update(context context.Context, user *auth.User) error

	/*
		SetStatus changes the lifecycle status of an account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - status: auth.AccountStatus

		Returns:
		  - error: apperr.NotFound or execution failures
	*/
	SetStatus(context context.Context, id string, status auth.AccountStatus) error

	/*
		SoftDelete flags an account as logically deleted.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: apperr.NotFound or execution failures
	*/
	SoftDelete(context context.Context, id string) error
}

// SessionRevoker terminates every live refresh token chain for a user.
// Implemented by the auth package's refresh token repository.
type SessionRevoker interface {
	RevokeAllForUser(context context.Context, userID string) (int64, error)
}

// ProfileCache invalidates a user's cached profile projection.
// Implemented by the auth package's identity cache.
type ProfileCache interface {
	Invalidate(context context.Context, userID string) error
}
