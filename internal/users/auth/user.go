// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package auth implements identity and session management for Inkframe.

It owns user accounts, password credentials, and the token pair lifecycle:
short-lived signed access tokens plus long-lived rotating refresh tokens.

Responsibilities:

  - Registration and credential verification (bcrypt).
  - Access token issuance via [sec.TokenService].
  - Refresh token rotation with single-use guarantee and reuse detection.
  - Session revocation (logout, password change, chain compromise).

The package follows the standard layering: service.go holds the business
logic, store.go declares persistence interfaces, store_postgres.go and
store_redis.go implement them, http.go exposes the transport.
*/
package auth

import (
	"time"

	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Account Status

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	// StatusActive marks a fully usable account.
	StatusActive AccountStatus = "active"

	// StatusInvited marks an account created by an admin that has not yet
	// completed first login.
	StatusInvited AccountStatus = "invited"

	// StatusSuspended marks an account blocked by an admin. Credentials remain
	// valid in storage but authentication is refused.
	StatusSuspended AccountStatus = "suspended"
)

// IsValid reports whether the status is a recognized lifecycle state.
func (status AccountStatus) IsValid() bool {
	switch status {
	case StatusActive, StatusInvited, StatusSuspended:
		return true
	}
	return false
}

// # Entities

// User is the account entity persisted in iam.account.
//
// PasswordHash never leaves this package; every outward-facing view goes
// through [User.Profile].
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         sec.UserRole
	Status       AccountStatus
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// CanAuthenticate reports whether the account may establish a new session.
//
// Suspended and soft-deleted accounts are refused before any password check,
// with the same generic error as a wrong password so account state is not
// probeable from the login endpoint.
func (user *User) CanAuthenticate() bool {
	return user.IsActive && user.Status == StatusActive && user.DeletedAt == nil
}

// Profile is the outward-facing projection of a [User].
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Profile returns the safe projection of the user for API responses.
func (user *User) Profile() Profile {
	return Profile{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Status:      string(user.Status),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// RefreshToken is one link in a session's rotation chain, persisted in
// iam.refreshtoken.
//
// # Chains
//
// Every login creates a fresh chain (ChainID). Each successful refresh
// consumes the current link and appends a successor carrying the same
// ChainID. Presenting an already-consumed link is the reuse signal that
// revokes the entire chain.
//
// Only TokenHash (SHA-256 hex of the opaque secret) is stored; the secret
// itself exists solely in the client's cookie.
type RefreshToken struct {
	ID         string
	UserID     string
	ChainID    string
	TokenHash  string
	RememberMe bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	RevokedAt  *time.Time
}

// Live reports whether the token can still be exchanged: not consumed, not
// revoked, not past its expiry.
func (token *RefreshToken) Live(now time.Time) bool {
	return token.ConsumedAt == nil && token.RevokedAt == nil && now.Before(token.ExpiresAt)
}

// # Field Identifiers

// Field names shared between request payloads and validation errors.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldRememberMe      = "remember_me"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
)
