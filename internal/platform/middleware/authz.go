// Copyright (c) 2026 Inkframe. All rights reserved.

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/inkframe/inkframe/internal/platform/constants"
	"github.com/inkframe/inkframe/internal/platform/ctxutil"
	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Authentication

// TokenVerifier validates a signed access token and returns its claims.
// Implemented by [sec.TokenService].
type TokenVerifier interface {
	VerifyToken(tokenString string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the access token, if one is present.
//
// The token is read from the Authorization header (Bearer scheme) first, then
// from the access_token cookie. Verification is pure signature + expiry
// checking against [sec.TokenService]; no store access happens here.
//
// # Soft Authentication
//
// A missing or invalid token does NOT reject the request at this layer. The
// request simply proceeds without an identity, and [RequireAuth] or
// [RequirePermission] decide whether anonymity is acceptable for the route.
// This keeps public endpoints (health, login) behind the same pipeline.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Locate the raw token: header wins over cookie
			rawToken := bearerToken(request)
			if rawToken == "" {
				if cookie, err := request.Cookie(constants.AccessTokenCookieName); err == nil {
					rawToken = cookie.Value
				}
			}

			// 2. No credential presented: continue as anonymous
			if rawToken == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 3. Verify signature and registered claims
			claims, err := verifier.VerifyToken(rawToken)
			if err != nil {
				// An invalid token is treated as anonymous rather than rejected,
				// so expired sessions can still reach login and refresh.
				next.ServeHTTP(writer, request)
				return
			}

			// 4. Inject the verified identity into the request context
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// # Authorization

// RequireAuth rejects requests that carry no verified identity.
//
// It must be mounted after [Authenticate] in the chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// PermissionChecker answers whether a user may perform an action on a menu
// node. Implemented by the rbac service.
type PermissionChecker interface {
	CheckMenuAction(ctx context.Context, userID string, role sec.UserRole, menuCode string, action sec.Action) (bool, error)
}

// RequirePermission gates a route on a specific menu/action decision.
//
// It must be mounted after [Authenticate]. The checker consults the full
// permission matrix (user overrides, role grants, super_admin bypass), so a
// deny here reflects the same decision the menu tree endpoint exposes.
func RequirePermission(checker PermissionChecker, menuCode string, action sec.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			// An unknown role parses to the empty role, which resolves to
			// an empty matrix and denies everything.
			role := sec.ParseRole(claims.Role)

			allowed, err := checker.CheckMenuAction(request.Context(), claims.UserID, role, menuCode, action)
			if err != nil {
				writeError(writer, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
				return
			}

			if !allowed {
				writeError(writer, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireRole rejects authenticated users whose role is below the given floor.
//
// This is the coarse gate used for whole route groups; fine-grained
// menu/action checks live in the rbac handlers themselves.
func RequireRole(minimum sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !sec.ParseRole(claims.Role).AtLeast(minimum) {
				writeError(writer, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
