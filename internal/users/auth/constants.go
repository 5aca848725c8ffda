// Copyright (c) 2026 Inkframe. All rights reserved.

package auth

import "time"

// # Token Lifetimes

const (
	// AccessTokenTTL is the lifetime of a signed access token. Kept short so
	// a stolen token has a narrow abuse window; the refresh flow makes the
	// short lifetime invisible to clients.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the default refresh token lifetime.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// RememberMeRefreshTokenTTL is the extended lifetime granted when the
	// user opts into "remember me" at login. The flag is sticky: rotation
	// re-issues with the same lifetime class.
	RememberMeRefreshTokenTTL = 30 * 24 * time.Hour
)

// # Token Shape

const (
	// RefreshTokenByteLength is the entropy of the opaque refresh secret
	// before base64url encoding.
	RefreshTokenByteLength = 32
)

// # Caching

const (
	// ProfileCacheTTL bounds staleness of the cached identity projection.
	// Kept to a minute so status changes (suspension, deletion) reach the
	// /auth/me surface quickly even before the chain revocation lands.
	ProfileCacheTTL = 60 * time.Second
)

// # Throttling

const (
	// LoginRetryAfterSeconds is the retry hint returned with a 429 on the
	// login endpoint. Matches the default limiter window.
	LoginRetryAfterSeconds = 60
)

// # Housekeeping

const (
	// ExpiredTokenSweepInterval is how often the background sweeper purges
	// expired and consumed refresh tokens from storage.
	ExpiredTokenSweepInterval = 1 * time.Hour

	// ExpiredTokenRetention keeps consumed links around briefly after expiry
	// so a late reuse of an expired chain is still distinguishable in logs.
	ExpiredTokenRetention = 24 * time.Hour
)
