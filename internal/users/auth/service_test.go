// Copyright (c) 2026 Inkframe. All rights reserved.

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/auth"
)

// # In-Memory Fakes

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*auth.User
	byEmail map[string]*auth.User
	finds   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*auth.User),
		byEmail: make(map[string]*auth.User),
	}
}

func (repo *fakeUserRepo) Insert(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, exists := repo.byEmail[user.Email]; exists {
		return apperr.Conflict("Email is already registered")
	}
	clone := *user
	repo.byID[user.ID] = &clone
	repo.byEmail[user.Email] = &clone
	return nil
}

func (repo *fakeUserRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.finds++
	user, ok := repo.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *user
	return &clone, nil
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *user
	return &clone, nil
}

func (repo *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.byID[id]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

func (repo *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.byID[id]; ok {
		user.PasswordHash = hash
	}
	return nil
}

// fakeTokenRepo mirrors the Postgres conditional-consume semantics in memory.
type fakeTokenRepo struct {
	mu     sync.Mutex
	byHash map[string]*auth.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byHash: make(map[string]*auth.RefreshToken)}
}

func (repo *fakeTokenRepo) Insert(_ context.Context, token *auth.RefreshToken) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	clone := *token
	repo.byHash[token.TokenHash] = &clone
	return nil
}

func (repo *fakeTokenRepo) FindByHash(_ context.Context, hash string) (*auth.RefreshToken, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	token, ok := repo.byHash[hash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	clone := *token
	return &clone, nil
}

func (repo *fakeTokenRepo) ConsumeAndReplace(_ context.Context, hash string, successor *auth.RefreshToken) (*auth.RefreshToken, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	token, ok := repo.byHash[hash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}

	now := time.Now()
	switch {
	case token.RevokedAt != nil:
		return nil, auth.ErrTokenRevoked
	case token.ConsumedAt != nil:
		return nil, auth.ErrTokenConsumed
	case !now.Before(token.ExpiresAt):
		return nil, auth.ErrTokenExpired
	}

	token.ConsumedAt = &now

	successor.UserID = token.UserID
	successor.ChainID = token.ChainID
	successor.RememberMe = token.RememberMe
	if successor.ExpiresAt.IsZero() {
		lifetime := auth.RefreshTokenTTL
		if token.RememberMe {
			lifetime = auth.RememberMeRefreshTokenTTL
		}
		successor.ExpiresAt = successor.IssuedAt.Add(lifetime)
	}

	clone := *successor
	repo.byHash[successor.TokenHash] = &clone

	consumed := *token
	return &consumed, nil
}

func (repo *fakeTokenRepo) RevokeChain(_ context.Context, chainID string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	var count int64
	for _, token := range repo.byHash {
		if token.ChainID == chainID && token.RevokedAt == nil {
			token.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (repo *fakeTokenRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	var count int64
	for _, token := range repo.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (repo *fakeTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for hash, token := range repo.byHash {
		if token.ExpiresAt.Before(cutoff) {
			delete(repo.byHash, hash)
			count++
		}
	}
	return count, nil
}

// live reports how many unexpired, unconsumed, unrevoked tokens a user holds.
func (repo *fakeTokenRepo) live(userID string) int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	count := 0
	for _, token := range repo.byHash {
		if token.UserID == userID && token.Live(now) {
			count++
		}
	}
	return count
}

type fakeCache struct{}

func (fakeCache) GetProfile(context.Context, string) ([]byte, error) { return nil, nil }
func (fakeCache) SetProfile(context.Context, string, []byte) error   { return nil }
func (fakeCache) Invalidate(context.Context, string) error           { return nil }

type fakeLimiter struct {
	allow bool
	calls int
}

func (limiter *fakeLimiter) Allow(context.Context, string) (bool, error) {
	limiter.calls++
	return limiter.allow, nil
}

type fakeProvider struct{}

func (fakeProvider) GenerateAccessToken(userID, _, _ string, _ sec.UserRole, _ time.Duration) (string, error) {
	return "signed-access-token-" + userID, nil
}

// # Harness

type testEnv struct {
	service *auth.Service
	users   *fakeUserRepo
	tokens  *fakeTokenRepo
	limiter *fakeLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	limiter := &fakeLimiter{allow: true}

	return &testEnv{
		service: auth.NewService(users, tokens, fakeCache{}, limiter, fakeProvider{}),
		users:   users,
		tokens:  tokens,
		limiter: limiter,
	}
}

func (env *testEnv) register(t *testing.T, email, password string) *auth.User {
	t.Helper()

	session, err := env.service.Register(context.Background(), auth.RegisterInput{
		Email:       email,
		Password:    password,
		DisplayName: "Test User",
	})
	require.NoError(t, err)

	// Registration signs the user in; drop that chain so the tests below
	// count only the chains they open themselves.
	require.NoError(t, env.service.Logout(context.Background(), session.RefreshToken))
	return session.User
}

// # Registration

/*
TestService_Register verifies enrollment and email conflict handling.
*/
func TestService_Register(t *testing.T) {
	env := newTestEnv(t)

	session, err := env.service.Register(context.Background(), auth.RegisterInput{
		Email:       "reader@example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Test User",
	})
	require.NoError(t, err)

	user := session.User
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.Equal(t, sec.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash, "password must never be stored in plain text")

	// Enrollment signs the caller in with the default 7-day chain
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, auth.RefreshTokenTTL, session.RefreshTokenTTL)
	assert.Equal(t, 1, env.tokens.live(user.ID), "registration opens exactly one chain")

	// Same email again, different case: still a conflict
	_, err = env.service.Register(context.Background(), auth.RegisterInput{
		Email:       "Reader@Example.com",
		Password:    "another-password",
		DisplayName: "Impostor",
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

// # Login

/*
TestService_Login_Success verifies the happy path and lifetime classes.
*/
func TestService_Login_Success(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	assert.Equal(t, "signed-access-token-"+user.ID, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, auth.RefreshTokenTTL, session.RefreshTokenTTL)
	assert.Equal(t, 1, env.tokens.live(user.ID))

	// Remember-me upgrades the refresh lifetime to the extended class
	longSession, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:      "reader@example.com",
		Password:   "correct-horse-battery",
		RememberMe: true,
		ClientIP:   "203.0.113.7",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RememberMeRefreshTokenTTL, longSession.RefreshTokenTTL)

	// Two logins, two independent chains
	assert.Equal(t, 2, env.tokens.live(user.ID))
}

/*
TestService_Login_GenericFailures verifies that unknown email, wrong password,
and blocked accounts are indistinguishable to the caller.
*/
func TestService_Login_GenericFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "reader@example.com", "correct-horse-battery")

	tests := []struct {
		name     string
		email    string
		password string
		prepare  func()
	}{
		{"unknown_email", "ghost@example.com", "whatever", nil},
		{"wrong_password", "reader@example.com", "not-the-password", nil},
		{"suspended_account", "reader@example.com", "correct-horse-battery", func() {
			env.users.byEmail["reader@example.com"].Status = auth.StatusSuspended
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepare != nil {
				tt.prepare()
			}

			_, err := env.service.Login(context.Background(), auth.LoginInput{
				Email:    tt.email,
				Password: tt.password,
				ClientIP: "203.0.113.7",
			})
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "UNAUTHORIZED", ae.Code)
			assert.Equal(t, "Invalid email or password", ae.Message)
		})
	}
}

/*
TestService_Login_RateLimited verifies the limiter runs before any
credential work.
*/
func TestService_Login_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "reader@example.com", "correct-horse-battery")
	env.limiter.allow = false

	findsBefore := env.users.finds

	_, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.Error(t, err)
	assert.Equal(t, "RATE_LIMITED", apperr.As(err).Code)

	// The account was never even loaded
	assert.Equal(t, findsBefore, env.users.finds)
	assert.Equal(t, 1, env.limiter.calls)
}

// # Refresh Rotation

/*
TestService_Refresh_Rotation verifies single-use exchange and successor
validity.
*/
func TestService_Refresh_Rotation(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	// First exchange succeeds and yields a different secret
	next, err := env.service.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, next.RefreshToken)
	assert.Equal(t, user.ID, next.User.ID)

	// Exactly one live token remains: the successor
	assert.Equal(t, 1, env.tokens.live(user.ID))

	// The successor is itself immediately usable
	third, err := env.service.Refresh(context.Background(), next.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, next.RefreshToken, third.RefreshToken)
}

/*
TestService_Refresh_ReuseRevokesChain verifies theft detection: replaying a
consumed token kills every descendant in the chain.
*/
func TestService_Refresh_ReuseRevokesChain(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	next, err := env.service.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)

	// Replay of the consumed predecessor
	_, err = env.service.Refresh(context.Background(), session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_REUSED", apperr.As(err).Code)

	// The legitimate successor died with the chain
	assert.Equal(t, 0, env.tokens.live(user.ID))

	_, err = env.service.Refresh(context.Background(), next.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)
}

/*
TestService_Refresh_InvalidTokens verifies unknown and expired tokens map to
the generic invalid error without side effects.
*/
func TestService_Refresh_InvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	_, err := env.service.Refresh(context.Background(), "never-issued-token")
	require.Error(t, err)
	assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)

	_, err = env.service.Refresh(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)

	// Expired token: backdate the stored row
	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	hash := sec.HashToken(session.RefreshToken)
	env.tokens.byHash[hash].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = env.service.Refresh(context.Background(), session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)
	assert.Equal(t, 0, env.tokens.live(user.ID))
}

/*
TestService_Refresh_RememberMeSticky verifies the extended lifetime survives
rotation.
*/
func TestService_Refresh_RememberMeSticky(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "reader@example.com", "correct-horse-battery")

	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:      "reader@example.com",
		Password:   "correct-horse-battery",
		RememberMe: true,
		ClientIP:   "203.0.113.7",
	})
	require.NoError(t, err)

	next, err := env.service.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RememberMeRefreshTokenTTL, next.RefreshTokenTTL)
}

// # Session Termination

/*
TestService_Logout verifies chain revocation and idempotency.
*/
func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	session, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(context.Background(), session.RefreshToken))
	assert.Equal(t, 0, env.tokens.live(user.ID))

	// Revoked token can no longer refresh
	_, err = env.service.Refresh(context.Background(), session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)

	// Logging out again, or with garbage, is not an error
	require.NoError(t, env.service.Logout(context.Background(), session.RefreshToken))
	require.NoError(t, env.service.Logout(context.Background(), ""))
	require.NoError(t, env.service.Logout(context.Background(), "unknown"))
}

/*
TestService_ChangePassword verifies credential rotation revokes every chain
on every device.
*/
func TestService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "reader@example.com", "correct-horse-battery")

	// Two devices, two chains
	first, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)

	second, err := env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "198.51.100.4",
	})
	require.NoError(t, err)

	// Wrong current password is refused
	err = env.service.ChangePassword(context.Background(), user.ID, "not-the-password", "a-new-password-123")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// Correct change revokes both chains
	err = env.service.ChangePassword(context.Background(), user.ID, "correct-horse-battery", "a-new-password-123")
	require.NoError(t, err)
	assert.Equal(t, 0, env.tokens.live(user.ID))

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err = env.service.Refresh(context.Background(), token)
		require.Error(t, err)
		assert.Equal(t, "TOKEN_INVALID", apperr.As(err).Code)
	}

	// The new password works, the old one does not
	_, err = env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
		ClientIP: "203.0.113.7",
	})
	require.Error(t, err)

	_, err = env.service.Login(context.Background(), auth.LoginInput{
		Email:    "reader@example.com",
		Password: "a-new-password-123",
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)
}
