// Copyright (c) 2026 Inkframe. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [TokenProvider] interface defined by consumers.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the UserID, Email, DisplayName, and Role directly inside the
// JWT, authentication middleware can reconstruct the active user context
// WITHOUT querying the database on every single API request. Verification is
// pure signature + expiry checking, which bounds authorization latency
// independent of store availability.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID      string `json:"uid"`
	Email       string `json:"eml"`
	DisplayName string `json:"dnm"`
	Role        string `json:"rol"`
}

// MinSecretLength is the minimum byte length accepted for the HS256 secret.
const MinSecretLength = 32

// TokenService handles generation and verification of JWT tokens using HS256.
//
// # Concurrency
//
// The service holds only immutable state after construction; verification is
// lock-free and safe for concurrent use across request handlers.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a new TokenService from the configured signing secret.
//
// # Fail Closed
//
// An empty or short secret is refused outright. A misconfigured secret must
// make every verification fail, never silently accept unsigned tokens.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("sec: signing secret must be at least %d bytes", MinSecretLength)
	}

	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

// GenerateAccessToken creates a new signed JWT access token for a user.
func (service *TokenService) GenerateAccessToken(userID, email, displayName string, role UserRole, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Role:        string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT string.
//
// # Guarantees
//
//   - Rejects any algorithm other than HMAC (alg confusion defense).
//   - Rejects expired or not-yet-valid tokens via the library's validators.
//   - Performs no store access; the decision is made from the token alone.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	}, jwt.WithIssuer(service.issuer))

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
