// Copyright (c) 2026 Inkframe. All rights reserved.

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// # Opaque Tokens

// GenerateSecureToken returns a URL-safe random token of byteLength entropy bytes.
//
// It is used for refresh tokens: opaque values whose only server-side trace
// is the SHA-256 hash produced by [HashToken].
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// # Security
//
// Refresh tokens are never persisted or logged in plaintext. Lookup, rotation,
// and revocation all operate on this digest.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
