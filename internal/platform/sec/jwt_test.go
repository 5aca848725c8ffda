// Copyright (c) 2026 Inkframe. All rights reserved.

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/platform/sec"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "inkframe.app"
)

func newTestService(t *testing.T) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(testSecret, testIssuer)
	require.NoError(t, err)
	return service
}

/*
TestNewTokenService_RefusesShortSecret verifies the fail-closed constructor:
weak signing material must prevent the service from existing at all.
*/
func TestNewTokenService_RefusesShortSecret(t *testing.T) {
	_, err := sec.NewTokenService("too-short", testIssuer)
	require.Error(t, err)

	_, err = sec.NewTokenService("", testIssuer)
	require.Error(t, err)
}

/*
TestTokenService_RoundTrip verifies that every claim survives the
generate/verify cycle unchanged.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service := newTestService(t)

	signed, err := service.GenerateAccessToken("user-1", "alice@example.com", "Alice", sec.RoleAdmin, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := service.VerifyToken(signed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, testIssuer, claims.Issuer)
}

/*
TestTokenService_RejectsExpired verifies that a token past its lifetime is
refused by verification.
*/
func TestTokenService_RejectsExpired(t *testing.T) {
	service := newTestService(t)

	signed, err := service.GenerateAccessToken("user-1", "alice@example.com", "Alice", sec.RoleUser, -1*time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyToken(signed)
	require.Error(t, err)
}

/*
TestTokenService_RejectsWrongSecret verifies that a token signed by another
service instance does not verify.
*/
func TestTokenService_RejectsWrongSecret(t *testing.T) {
	service := newTestService(t)
	other, err := sec.NewTokenService("ffffffffffffffffffffffffffffffff", testIssuer)
	require.NoError(t, err)

	signed, err := other.GenerateAccessToken("user-1", "alice@example.com", "Alice", sec.RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyToken(signed)
	require.Error(t, err)
}

/*
TestTokenService_RejectsWrongIssuer verifies the issuer claim is enforced.
*/
func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	service := newTestService(t)
	other, err := sec.NewTokenService(testSecret, "evil.example.com")
	require.NoError(t, err)

	signed, err := other.GenerateAccessToken("user-1", "alice@example.com", "Alice", sec.RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyToken(signed)
	require.Error(t, err)
}

/*
TestTokenService_RejectsUnsignedAlgorithm verifies the algorithm pin: a token
declaring alg "none" must never verify, even with otherwise valid claims.
*/
func TestTokenService_RejectsUnsignedAlgorithm(t *testing.T) {
	service := newTestService(t)

	claims := sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: "user-1",
		Role:   "super_admin",
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.VerifyToken(raw)
	require.Error(t, err)
}

/*
TestTokenService_RejectsTampering verifies that flipping payload bytes
invalidates the signature.
*/
func TestTokenService_RejectsTampering(t *testing.T) {
	service := newTestService(t)

	signed, err := service.GenerateAccessToken("user-1", "alice@example.com", "Alice", sec.RoleUser, time.Minute)
	require.NoError(t, err)

	tampered := []byte(signed)
	middle := len(tampered) / 2
	if tampered[middle] == 'a' {
		tampered[middle] = 'b'
	} else {
		tampered[middle] = 'a'
	}

	_, err = service.VerifyToken(string(tampered))
	require.Error(t, err)
}
