// Copyright (c) 2026 Inkframe. All rights reserved.

package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/auth"
	"github.com/inkframe/inkframe/pkg/pagination"
)

// # Service Layer

// Service orchestrates administrative operations on the account directory.
//
// Mutations that reduce an account's access (suspension, deletion) revoke
// its refresh token chains immediately; the access token can live out its
// short remaining lifetime, the next refresh fails.
type Service struct {
	accounts AccountRepository
	sessions SessionRevoker
	cache    ProfileCache
	logger   *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	accounts AccountRepository,
	sessions SessionRevoker,
	cache ProfileCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		cache:    cache,
		logger:   logger,
	}
}

// # Directory

/*
ListAccounts retrieves a page of the account directory.

Parameters:
  - context: context.Context
  - filter: ListFilter

Returns:
  - []AdminView: The page of operator-facing account views
  - pagination.Meta: Page metadata including the total match count
  - error: Storage failures
*/
func (service *Service) ListAccounts(context context.Context, filter ListFilter) ([]AdminView, pagination.Meta, error) {
	users, total, err := service.accounts.List(context, filter)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("account_service_list_failed: %w", err)
	}

	views := make([]AdminView, 0, len(users))
	for index := range users {
		views = append(views, NewAdminView(&users[index]))
	}

	return views, pagination.NewMeta(filter.Page.Page, filter.Page.Limit, total), nil
}

/*
GetAccount retrieves the operator view of a single account.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *AdminView: The account view
  - error: apperr.NotFound or storage failures
*/
func (service *Service) GetAccount(context context.Context, id string) (*AdminView, error) {
	user, err := service.accounts.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	view := NewAdminView(user)
	return &view, nil
}

// # Mutations

// UpdateInput defines the mutable subset of directory fields.
type UpdateInput struct {
	DisplayName *string
	Role        *sec.UserRole
}

/*
UpdateAccount applies a partial set of changes to an account's directory data.

Description: Role changes take effect on the permission matrix immediately
(the matrix cache key embeds the role), but tokens already issued keep the
old role claim until they expire.

Parameters:
  - context: context.Context
  - actorID: string (The operator making the change)
  - id: string (The target account)
  - input: UpdateInput

Returns:
  - *AdminView: The updated account view
  - error: Not found, self-demotion, or storage failures
*/
func (service *Service) UpdateAccount(context context.Context, actorID, id string, input UpdateInput) (*AdminView, error) {
	user, err := service.accounts.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}

	if input.Role != nil {
		// Operators cannot change their own role; another operator must
		// do it, so a lone super_admin cannot lock everyone out.
		if actorID == id && *input.Role != user.Role {
			return nil, apperr.Forbidden("You cannot change your own role")
		}
		user.Role = *input.Role
	}

	if err := service.accounts.Update(context, user); err != nil {
		return nil, err
	}

	// Stale profile projections must not outlive the change
	if err := service.cache.Invalidate(context, id); err != nil {
		service.logger.WarnContext(context, "account_profile_cache_invalidate_failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
	}

	service.logger.InfoContext(context, "account_updated",
		slog.String("actor_id", actorID),
		slog.String("user_id", id),
	)

	view := NewAdminView(user)
	return &view, nil
}

/*
SetStatus changes the lifecycle status of an account.

Description: Moving an account to suspended revokes all of its refresh token
chains, so the lockout completes within the access token lifetime.

Parameters:
  - context: context.Context
  - actorID: string
  - id: string
  - status: auth.AccountStatus

Returns:
  - error: Not found, self-suspension, or storage failures
*/
func (service *Service) SetStatus(context context.Context, actorID, id string, status auth.AccountStatus) error {
	if actorID == id && status != auth.StatusActive {
		return apperr.Forbidden("You cannot suspend your own account")
	}

	if err := service.accounts.SetStatus(context, id, status); err != nil {
		return err
	}

	if status == auth.StatusSuspended {
		revoked, err := service.sessions.RevokeAllForUser(context, id)
		if err != nil {
			return fmt.Errorf("account_service_suspend_revoke_failed: %w", err)
		}
		service.logger.InfoContext(context, "account_suspended_sessions_revoked",
			slog.String("user_id", id),
			slog.Int64("revoked", revoked),
		)
	}

	if err := service.cache.Invalidate(context, id); err != nil {
		service.logger.WarnContext(context, "account_profile_cache_invalidate_failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
	}

	service.logger.InfoContext(context, "account_status_changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", id),
		slog.String("status", string(status)),
	)

	return nil
}

/*
DeleteAccount performs a soft-deletion of an account.

Description: Flags the account as deleted and terminates all of its refresh
token chains to force a global sign-out. The row is retained for audit.

Parameters:
  - context: context.Context
  - actorID: string
  - id: string

Returns:
  - error: Not found, self-deletion, or storage failures
*/
func (service *Service) DeleteAccount(context context.Context, actorID, id string) error {
	if actorID == id {
		return apperr.Forbidden("You cannot delete your own account")
	}

	if err := service.accounts.SoftDelete(context, id); err != nil {
		return err
	}

	if _, err := service.sessions.RevokeAllForUser(context, id); err != nil {
		return fmt.Errorf("account_service_delete_revoke_failed: %w", err)
	}

	if err := service.cache.Invalidate(context, id); err != nil {
		service.logger.WarnContext(context, "account_profile_cache_invalidate_failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
	}

	service.logger.WarnContext(context, "account_deleted",
		slog.String("actor_id", actorID),
		slog.String("user_id", id),
	)

	return nil
}
