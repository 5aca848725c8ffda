// Copyright (c) 2026 Inkframe. All rights reserved.

package auth

import (
	"context"
	"errors"
	"time"
)

// # Store Errors

var (
	// ErrTokenNotFound signals that no refresh token row matches the
	// presented hash. The caller maps this to a generic invalid-token error.
	ErrTokenNotFound = errors.New("auth: refresh token not found")

	// ErrTokenConsumed signals that the presented refresh token exists but
	// was already exchanged. This is the reuse signal: the service responds
	// by revoking the whole chain.
	ErrTokenConsumed = errors.New("auth: refresh token already consumed")

	// ErrTokenRevoked signals the token's chain was revoked earlier, by
	// logout, password change, or a previous reuse detection.
	ErrTokenRevoked = errors.New("auth: refresh token revoked")

	// ErrTokenExpired signals the token row exists but is past its expiry.
	// Treated like not-found by the service so expiry is not probeable.
	ErrTokenExpired = errors.New("auth: refresh token expired")
)

// # Persistence Interfaces

// UserRepository is the persistence boundary for account rows.
type UserRepository interface {
	// Insert stores a new account. Duplicate emails surface as a conflict.
	Insert(ctx context.Context, user *User) error

	// FindByEmail loads an account by its unique email, soft-deleted rows
	// excluded.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID loads an account by primary key, soft-deleted rows excluded.
	FindByID(ctx context.Context, id string) (*User, error)

	// UpdateLastLogin records a successful authentication timestamp.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePasswordHash replaces the stored credential.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// RefreshTokenRepository is the persistence boundary for rotation chains.
type RefreshTokenRepository interface {
	// Insert stores a freshly issued token (the head of a new chain).
	Insert(ctx context.Context, token *RefreshToken) error

	// FindByHash loads a token row by its SHA-256 hash regardless of state.
	// Used by the service to classify failures after a rejected exchange.
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// ConsumeAndReplace atomically marks the live token matching tokenHash
	// as consumed and inserts its successor in the same transaction.
	//
	// The returned token is the consumed predecessor. The successor inherits
	// the predecessor's UserID, ChainID, and RememberMe lifetime class
	// (deriving ExpiresAt when unset). If no live row matches, the error is
	// one of [ErrTokenNotFound], [ErrTokenConsumed], [ErrTokenRevoked], or
	// [ErrTokenExpired]; no successor is written.
	ConsumeAndReplace(ctx context.Context, tokenHash string, successor *RefreshToken) (*RefreshToken, error)

	// RevokeChain revokes every unconsumed, unrevoked token in a chain.
	// Returns the number of rows affected.
	RevokeChain(ctx context.Context, chainID string) (int64, error)

	// RevokeAllForUser revokes every live token the user holds, across all
	// chains and devices. Used on password change.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired purges rows whose expiry is older than the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// # Volatile State Interfaces

// IdentityCache is a short-lived cache of outward-facing profile payloads.
//
// A nil payload with a nil error is a cache miss. The cache is advisory:
// callers must fall back to the repository on any miss or error.
type IdentityCache interface {
	GetProfile(ctx context.Context, userID string) ([]byte, error)
	SetProfile(ctx context.Context, userID string, payload []byte) error
	Invalidate(ctx context.Context, userID string) error
}

// LoginLimiter throttles credential-verification attempts per client key.
//
// The limiter is consulted BEFORE the password check so brute-force traffic
// never reaches bcrypt.
type LoginLimiter interface {
	// Allow reports whether another attempt is permitted for the key within
	// the current window. A limiter backend failure should be surfaced, not
	// silently treated as allowed.
	Allow(ctx context.Context, key string) (bool, error)
}
