// Copyright (c) 2026 Inkframe. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/ctxutil"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for minting signed access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	GenerateAccessToken(userID, email, displayName string, role sec.UserRole, timeToLive time.Duration) (string, error)
}

// Service implements identity and session use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, rotation,
// or reuse-detection logic must be reviewed before merge.
type Service struct {
	users    UserRepository
	tokens   RefreshTokenRepository
	cache    IdentityCache
	limiter  LoginLimiter
	provider TokenProvider
}

// NewService constructs the auth [Service] with its dependencies.
func NewService(
	users UserRepository,
	tokens RefreshTokenRepository,
	cache IdentityCache,
	limiter LoginLimiter,
	provider TokenProvider,
) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		cache:    cache,
		limiter:  limiter,
		provider: provider,
	}
}

// Session is the result of a successful login or refresh: a signed access
// token plus the opaque refresh secret destined for the client cookie.
type Session struct {
	User            *User
	AccessToken     string
	RefreshToken    string
	RefreshTokenTTL time.Duration
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

/*
Register validates, hashes, and persists a brand new account, then signs the
user in immediately.

Description: The returned session starts a fresh refresh chain with the
default 7-day lifetime; "remember me" is a login-time choice only.

Parameters:
  - context: context.Context
  - input: RegisterInput (email already format-validated by the handler)

Returns:
  - *Session: The new account's first session
  - error: apperr.Conflict if the email exists, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Session, error) {

	// Normalize the email so uniqueness is case-insensitive
	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err := service.users.FindByEmail(context, email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	now := time.Now()
	user := &User{
		ID:           uuidv7.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  input.DisplayName,
		Role:         sec.RoleUser,
		Status:       StatusActive,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.users.Insert(context, user); err != nil {
		return nil, err
	}

	return service.issueSession(context, user, uuidv7.New(), false)
}

// # Login Flow

// LoginInput holds the credentials presented at the login endpoint.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	ClientIP   string
}

/*
Login verifies credentials and establishes a fresh session chain.

Description: The rate limiter is consulted BEFORE any credential work so
brute-force traffic never reaches bcrypt. Unknown email, wrong password, and
blocked account all return the same generic Unauthorized error; none of those
states is probeable from this endpoint.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Access token + refresh secret for the cookie layer
  - error: apperr.RateLimited, apperr.Unauthorized, or storage errors
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {

	// 1. Throttle by client IP before touching credentials
	allowed, err := service.limiter.Allow(context, input.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("auth_service_limiter_failed: %w", err)
	}
	if !allowed {
		return nil, apperr.RateLimited(LoginRetryAfterSeconds)
	}

	// 2. Locate the account
	email := strings.ToLower(strings.TrimSpace(input.Email))
	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, err
	}

	// 3. Refuse blocked accounts with the same generic error as a bad password
	if !user.CanAuthenticate() {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// 4. Verify the password
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// 5. Establish a brand new rotation chain for this device
	session, err := service.issueSession(context, user, uuidv7.New(), input.RememberMe)
	if err != nil {
		return nil, err
	}

	// 6. Record the successful authentication; advisory only
	now := time.Now()
	if err := service.users.UpdateLastLogin(context, user.ID, now); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "last_login_update_failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	user.LastLoginAt = &now

	return session, nil
}

// # Refresh Flow

/*
Refresh exchanges a live refresh token for a fresh token pair.

Description: The exchange is a single atomic consume-and-replace in storage,
so each refresh token is usable exactly once even under concurrent requests.
Presenting an already-consumed token is treated as theft evidence: the entire
chain is revoked and the caller receives TOKEN_REUSED. Expired, revoked, and
unknown tokens all map to the generic TOKEN_INVALID.

Parameters:
  - context: context.Context
  - rawToken: string (the opaque secret from the cookie)

Returns:
  - *Session: New access token + successor refresh secret
  - error: apperr.TokenReused, apperr.TokenInvalid, or storage errors
*/
func (service *Service) Refresh(context context.Context, rawToken string) (*Session, error) {
	if rawToken == "" {
		return nil, apperr.TokenInvalid()
	}

	tokenHash := sec.HashToken(rawToken)

	// 1. Mint the successor BEFORE the exchange so the transaction stays short
	successorSecret, err := sec.GenerateSecureToken(RefreshTokenByteLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_mint_failed: %w", err)
	}

	// Owner, chain, lifetime class, and expiry are inherited from the
	// consumed row inside the exchange.
	successor := &RefreshToken{
		ID:        uuidv7.New(),
		TokenHash: sec.HashToken(successorSecret),
		IssuedAt:  time.Now(),
	}

	// 2. Atomic single-use exchange
	predecessor, err := service.tokens.ConsumeAndReplace(context, tokenHash, successor)
	if err != nil {
		return nil, service.handleExchangeFailure(context, tokenHash, err)
	}

	// 3. Honor the sticky remember-me lifetime class
	ttl := RefreshTokenTTL
	if predecessor.RememberMe {
		ttl = RememberMeRefreshTokenTTL
	}

	// 4. Load the owner and mint the paired access token
	user, err := service.users.FindByID(context, predecessor.UserID)
	if err != nil {
		return nil, apperr.TokenInvalid()
	}
	if !user.CanAuthenticate() {
		return nil, apperr.TokenInvalid()
	}

	accessToken, err := service.provider.GenerateAccessToken(
		user.ID, user.Email, user.DisplayName, user.Role, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	return &Session{
		User:            user,
		AccessToken:     accessToken,
		RefreshToken:    successorSecret,
		RefreshTokenTTL: ttl,
	}, nil
}

// handleExchangeFailure maps a failed consume-and-replace to a client error,
// revoking the chain when the failure is a reuse signal.
func (service *Service) handleExchangeFailure(context context.Context, tokenHash string, exchangeErr error) error {
	if !errors.Is(exchangeErr, ErrTokenConsumed) {
		if errors.Is(exchangeErr, ErrTokenNotFound) ||
			errors.Is(exchangeErr, ErrTokenRevoked) ||
			errors.Is(exchangeErr, ErrTokenExpired) {
			return apperr.TokenInvalid()
		}
		return exchangeErr
	}

	// Reuse detected. The original chain may already be in an attacker's
	// hands, so every descendant is revoked before the caller learns anything.
	token, err := service.tokens.FindByHash(context, tokenHash)
	if err != nil {
		return apperr.TokenInvalid()
	}

	revoked, err := service.tokens.RevokeChain(context, token.ChainID)
	if err != nil {
		return fmt.Errorf("auth_service_chain_revoke_failed: %w", err)
	}

	ctxutil.GetLogger(context).WarnContext(context, "refresh_token_reuse_detected",
		slog.String("user_id", token.UserID),
		slog.String("chain_id", token.ChainID),
		slog.Int64("tokens_revoked", revoked),
	)

	return apperr.TokenReused()
}

// # Session Termination

/*
Logout revokes the rotation chain behind the presented refresh token.

Description: Logout is idempotent. An unknown or already-dead token is not an
error; the client's cookies are cleared either way.

Parameters:
  - context: context.Context
  - rawToken: string (may be empty if the cookie was already gone)

Returns:
  - error: Storage errors only
*/
func (service *Service) Logout(context context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	token, err := service.tokens.FindByHash(context, sec.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return err
	}

	if _, err := service.tokens.RevokeChain(context, token.ChainID); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}

/*
ChangePassword rotates the stored credential and invalidates every session.

Description: After the hash is replaced, ALL refresh tokens for the user are
revoked across every chain and device. Live access tokens remain valid for at
most [AccessTokenTTL]; that window is the accepted trade-off for keeping
access token verification store-free.

Parameters:
  - context: context.Context
  - userID: string (from the verified access token)
  - currentPassword: string
  - newPassword: string

Returns:
  - error: apperr.Unauthorized on a wrong current password, or storage errors
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.users.UpdatePasswordHash(context, user.ID, hashedPassword); err != nil {
		return err
	}

	// Kill every session so a stolen refresh token dies with the old password
	revoked, err := service.tokens.RevokeAllForUser(context, user.ID)
	if err != nil {
		return fmt.Errorf("auth_service_revoke_all_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "password_changed_sessions_revoked",
		slog.String("user_id", user.ID),
		slog.Int64("tokens_revoked", revoked),
	)

	return nil
}

// # Profile Reads

/*
Me returns the outward-facing profile for the authenticated user.

Description: Served through the short-lived identity cache. The cache is
advisory: a miss or a cache failure falls back to the repository.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Profile: Safe projection of the account
  - error: apperr.NotFound or storage errors
*/
func (service *Service) Me(context context.Context, userID string) (*Profile, error) {

	// 1. Try the cache
	if payload, err := service.cache.GetProfile(context, userID); err == nil && payload != nil {
		profile := &Profile{}
		if err := json.Unmarshal(payload, profile); err == nil {
			return profile, nil
		}
	}

	// 2. Fall back to the repository
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	profile := user.Profile()

	// 3. Repopulate the cache; failures are advisory
	if payload, err := json.Marshal(profile); err == nil {
		if err := service.cache.SetProfile(context, userID, payload); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "identity_cache_set_failed",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	return &profile, nil
}

// # Internal Helpers

// issueSession mints a new access token and the head of a fresh refresh chain.
func (service *Service) issueSession(context context.Context, user *User, chainID string, rememberMe bool) (*Session, error) {
	accessToken, err := service.provider.GenerateAccessToken(
		user.ID, user.Email, user.DisplayName, user.Role, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshSecret, err := sec.GenerateSecureToken(RefreshTokenByteLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_mint_failed: %w", err)
	}

	ttl := RefreshTokenTTL
	if rememberMe {
		ttl = RememberMeRefreshTokenTTL
	}

	now := time.Now()
	token := &RefreshToken{
		ID:         uuidv7.New(),
		UserID:     user.ID,
		ChainID:    chainID,
		TokenHash:  sec.HashToken(refreshSecret),
		RememberMe: rememberMe,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := service.tokens.Insert(context, token); err != nil {
		return nil, err
	}

	return &Session{
		User:            user,
		AccessToken:     accessToken,
		RefreshToken:    refreshSecret,
		RefreshTokenTTL: ttl,
	}, nil
}
