// Copyright (c) 2026 Inkframe. All rights reserved.

package account_test

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/account"
	"github.com/inkframe/inkframe/internal/users/auth"
	"github.com/inkframe/inkframe/pkg/pagination"
)

// # Test Doubles

type fakeAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*auth.User
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: map[string]*auth.User{}}
}

func (repo *fakeAccountRepo) List(_ context.Context, filter account.ListFilter) ([]auth.User, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var matches []auth.User
	for _, user := range repo.byID {
		if user.DeletedAt != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, string(user.Status)) {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(user.Email), needle) &&
				!strings.Contains(strings.ToLower(user.DisplayName), needle) {
				continue
			}
		}
		matches = append(matches, *user)
	}

	sort.Slice(matches, func(left, right int) bool {
		return matches[left].CreatedAt.After(matches[right].CreatedAt)
	})

	total := len(matches)
	start := filter.Page.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit
	if end > total {
		end = total
	}

	return matches[start:end], total, nil
}

func (repo *fakeAccountRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	user, ok := repo.byID[id]
	if !ok || user.DeletedAt != nil {
		return nil, apperr.NotFound("Account")
	}
	copied := *user
	return &copied, nil
}

func (repo *fakeAccountRepo) Update(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.byID[user.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("Account")
	}
	stored.DisplayName = user.DisplayName
	stored.Role = user.Role
	return nil
}

func (repo *fakeAccountRepo) SetStatus(_ context.Context, id string, status auth.AccountStatus) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.byID[id]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("Account")
	}
	stored.Status = status
	return nil
}

func (repo *fakeAccountRepo) SoftDelete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.byID[id]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("Account")
	}
	now := time.Now()
	stored.DeletedAt = &now
	return nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]int
}

func newFakeRevoker() *fakeRevoker { return &fakeRevoker{revoked: map[string]int{}} }

func (revoker *fakeRevoker) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	revoker.mu.Lock()
	defer revoker.mu.Unlock()
	revoker.revoked[userID]++
	return 1, nil
}

type fakeProfileCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (cache *fakeProfileCache) Invalidate(_ context.Context, userID string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.invalidated = append(cache.invalidated, userID)
	return nil
}

// # Test Harness

type testEnv struct {
	service *account.Service
	repo    *fakeAccountRepo
	revoker *fakeRevoker
	cache   *fakeProfileCache
}

func newTestEnv() *testEnv {
	repo := newFakeAccountRepo()
	revoker := newFakeRevoker()
	cache := &fakeProfileCache{}

	return &testEnv{
		service: account.NewService(repo, revoker, cache, slog.Default()),
		repo:    repo,
		revoker: revoker,
		cache:   cache,
	}
}

func (env *testEnv) seed(id, email, name string, role sec.UserRole, status auth.AccountStatus, createdAt time.Time) {
	env.repo.byID[id] = &auth.User{
		ID:          id,
		Email:       email,
		DisplayName: name,
		Role:        role,
		Status:      status,
		IsActive:    true,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// # Tests

/*
TestService_ListAccounts verifies filtering, search, and pagination of the
directory listing.
*/
func TestService_ListAccounts(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.seed("u1", "alice@example.com", "Alice", sec.RoleUser, auth.StatusActive, base)
	env.seed("u2", "bob@example.com", "Bob", sec.RoleUser, auth.StatusSuspended, base.Add(time.Hour))
	env.seed("u3", "carol@example.com", "Carol", sec.RoleAdmin, auth.StatusActive, base.Add(2*time.Hour))

	t.Run("returns all accounts newest first", func(t *testing.T) {
		views, meta, err := env.service.ListAccounts(context.Background(), account.ListFilter{
			Page: pagination.Params{Page: 1, Limit: 20},
		})
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.Equal(t, "u3", views[0].ID)
		assert.Equal(t, 3, meta.Total)
	})

	t.Run("status filter narrows results", func(t *testing.T) {
		views, _, err := env.service.ListAccounts(context.Background(), account.ListFilter{
			Statuses: []string{"suspended"},
			Page:     pagination.Params{Page: 1, Limit: 20},
		})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "u2", views[0].ID)
	})

	t.Run("search matches email and display name", func(t *testing.T) {
		views, _, err := env.service.ListAccounts(context.Background(), account.ListFilter{
			Search: "ALICE",
			Page:   pagination.Params{Page: 1, Limit: 20},
		})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "u1", views[0].ID)
	})

	t.Run("pagination windows the result", func(t *testing.T) {
		views, meta, err := env.service.ListAccounts(context.Background(), account.ListFilter{
			Page: pagination.Params{Page: 2, Limit: 2},
		})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, 3, meta.Total)
		assert.Equal(t, 2, meta.TotalPages)
	})
}

/*
TestService_UpdateAccount verifies display name and role changes, including
the self role change protection.
*/
func TestService_UpdateAccount(t *testing.T) {
	env := newTestEnv()
	base := time.Now()
	env.seed("actor", "root@example.com", "Root", sec.RoleSuperAdmin, auth.StatusActive, base)
	env.seed("target", "bob@example.com", "Bob", sec.RoleUser, auth.StatusActive, base)

	t.Run("updates display name and role", func(t *testing.T) {
		name := "Robert"
		role := sec.RoleAdmin
		view, err := env.service.UpdateAccount(context.Background(), "actor", "target", account.UpdateInput{
			DisplayName: &name,
			Role:        &role,
		})
		require.NoError(t, err)
		assert.Equal(t, "Robert", view.DisplayName)
		assert.Equal(t, "admin", view.Role)
		assert.Contains(t, env.cache.invalidated, "target")
	})

	t.Run("self role change is forbidden", func(t *testing.T) {
		role := sec.RoleUser
		_, err := env.service.UpdateAccount(context.Background(), "actor", "actor", account.UpdateInput{Role: &role})
		require.Error(t, err)
		assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
	})

	t.Run("unknown account yields not found", func(t *testing.T) {
		_, err := env.service.UpdateAccount(context.Background(), "actor", "ghost", account.UpdateInput{})
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})
}

/*
TestService_SetStatus verifies suspension semantics: sessions are revoked,
the cache is invalidated, and operators cannot suspend themselves.
*/
func TestService_SetStatus(t *testing.T) {
	env := newTestEnv()
	base := time.Now()
	env.seed("actor", "root@example.com", "Root", sec.RoleSuperAdmin, auth.StatusActive, base)
	env.seed("target", "bob@example.com", "Bob", sec.RoleUser, auth.StatusActive, base)

	t.Run("suspension revokes all sessions", func(t *testing.T) {
		err := env.service.SetStatus(context.Background(), "actor", "target", auth.StatusSuspended)
		require.NoError(t, err)

		assert.Equal(t, 1, env.revoker.revoked["target"])
		assert.Contains(t, env.cache.invalidated, "target")

		stored, err := env.repo.FindByID(context.Background(), "target")
		require.NoError(t, err)
		assert.Equal(t, auth.StatusSuspended, stored.Status)
	})

	t.Run("reinstatement does not revoke sessions", func(t *testing.T) {
		err := env.service.SetStatus(context.Background(), "actor", "target", auth.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, 1, env.revoker.revoked["target"])
	})

	t.Run("self suspension is forbidden", func(t *testing.T) {
		err := env.service.SetStatus(context.Background(), "actor", "actor", auth.StatusSuspended)
		require.Error(t, err)
		assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
	})
}

/*
TestService_DeleteAccount verifies soft deletion, forced sign-out, and the
self deletion protection.
*/
func TestService_DeleteAccount(t *testing.T) {
	env := newTestEnv()
	base := time.Now()
	env.seed("actor", "root@example.com", "Root", sec.RoleSuperAdmin, auth.StatusActive, base)
	env.seed("target", "bob@example.com", "Bob", sec.RoleUser, auth.StatusActive, base)

	t.Run("deletion removes the account from the directory", func(t *testing.T) {
		err := env.service.DeleteAccount(context.Background(), "actor", "target")
		require.NoError(t, err)

		assert.Equal(t, 1, env.revoker.revoked["target"])

		_, err = env.service.GetAccount(context.Background(), "target")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})

	t.Run("deletion is not repeatable", func(t *testing.T) {
		err := env.service.DeleteAccount(context.Background(), "actor", "target")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})

	t.Run("self deletion is forbidden", func(t *testing.T) {
		err := env.service.DeleteAccount(context.Background(), "actor", "actor")
		require.Error(t, err)
		assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
	})
}
