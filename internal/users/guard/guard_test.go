// Copyright (c) 2026 Inkframe. All rights reserved.

package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/platform/ctxutil"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/users/guard"
)

func claimsWithRole(role sec.UserRole) *sec.AuthClaims {
	return &sec.AuthClaims{
		UserID:      "user-1",
		Email:       "user@example.com",
		DisplayName: "Test User",
		Role:        string(role),
	}
}

/*
TestGuard_Evaluate verifies the protected-prefix rules across locales,
roles, and anonymous access.
*/
func TestGuard_Evaluate(t *testing.T) {
	routeGuard := guard.New()

	tests := []struct {
		name       string
		path       string
		claims     *sec.AuthClaims
		allowed    bool
		redirectTo string
	}{
		{
			name:    "public path passes anonymously",
			path:    "/en/comics/one-piece",
			claims:  nil,
			allowed: true,
		},
		{
			name:    "unprefixed public path passes",
			path:    "/about",
			claims:  nil,
			allowed: true,
		},
		{
			name:       "anonymous admin access redirects to login",
			path:       "/admin/settings",
			claims:     nil,
			redirectTo: "/en/login",
		},
		{
			name:       "anonymous admin access keeps the request locale",
			path:       "/vi/admin/settings",
			claims:     nil,
			redirectTo: "/vi/login",
		},
		{
			name:       "regular user is forbidden from admin",
			path:       "/en/admin",
			claims:     claimsWithRole(sec.RoleUser),
			redirectTo: "/en/forbidden",
		},
		{
			name:       "admin is forbidden from the super admin area",
			path:       "/ja/admin/users",
			claims:     claimsWithRole(sec.RoleAdmin),
			redirectTo: "/ja/forbidden",
		},
		{
			name:    "super admin enters the admin area",
			path:    "/vi/admin/users",
			claims:  claimsWithRole(sec.RoleSuperAdmin),
			allowed: true,
		},
		{
			name:       "regular user is forbidden from management",
			path:       "/vi/management/reports",
			claims:     claimsWithRole(sec.RoleUser),
			redirectTo: "/vi/forbidden",
		},
		{
			name:    "admin enters management",
			path:    "/management/reports",
			claims:  claimsWithRole(sec.RoleAdmin),
			allowed: true,
		},
		{
			name:    "super admin enters management",
			path:    "/en/management",
			claims:  claimsWithRole(sec.RoleSuperAdmin),
			allowed: true,
		},
		{
			name:       "unknown role is treated as no role",
			path:       "/en/management",
			claims:     &sec.AuthClaims{UserID: "user-1", Role: "owner"},
			redirectTo: "/en/forbidden",
		},
		{
			name:    "prefix match respects segment boundaries",
			path:    "/en/administration-guide",
			claims:  nil,
			allowed: true,
		},
		{
			name:       "doubled slash does not slip past the rule",
			path:       "/en//admin",
			claims:     claimsWithRole(sec.RoleUser),
			redirectTo: "/en/forbidden",
		},
		{
			name:       "leading double slash does not slip past the rule",
			path:       "//admin",
			claims:     nil,
			redirectTo: "/en/login",
		},
		{
			name:       "dot segment does not slip past the rule",
			path:       "/en/./admin",
			claims:     claimsWithRole(sec.RoleAdmin),
			redirectTo: "/en/forbidden",
		},
		{
			name:       "parent traversal does not slip past the rule",
			path:       "/en/x/../admin",
			claims:     claimsWithRole(sec.RoleUser),
			redirectTo: "/en/forbidden",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			decision := routeGuard.Evaluate(test.path, test.claims)

			assert.Equal(t, test.allowed, decision.Allowed)
			assert.Equal(t, test.redirectTo, decision.RedirectTo)
		})
	}
}

/*
TestGuard_SplitLocale verifies locale extraction, including regional
variants collapsing to their base locale.
*/
func TestGuard_SplitLocale(t *testing.T) {
	routeGuard := guard.New()

	tests := []struct {
		name   string
		path   string
		locale string
		rest   string
	}{
		{name: "english prefix", path: "/en/admin", locale: "en", rest: "/admin"},
		{name: "vietnamese prefix", path: "/vi/admin/users", locale: "vi", rest: "/admin/users"},
		{name: "japanese prefix", path: "/ja/forbidden", locale: "ja", rest: "/forbidden"},
		{name: "regional variant collapses", path: "/en-US/admin", locale: "en", rest: "/admin"},
		{name: "no locale prefix", path: "/admin/users", locale: "en", rest: "/admin/users"},
		{name: "unsupported locale keeps path", path: "/fr/admin", locale: "en", rest: "/fr/admin"},
		{name: "root path", path: "/", locale: "en", rest: "/"},
		{name: "bare locale segment", path: "/vi", locale: "vi", rest: "/"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			locale, rest := routeGuard.SplitLocale(test.path)

			assert.Equal(t, test.locale, locale)
			assert.Equal(t, test.rest, rest)
		})
	}
}

/*
TestGuard_Middleware verifies that rejected requests receive a redirect
response and allowed requests reach the wrapped handler.
*/
func TestGuard_Middleware(t *testing.T) {
	routeGuard := guard.New()

	reached := false
	next := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		reached = true
		writer.WriteHeader(http.StatusOK)
	})
	protected := routeGuard.Middleware()(next)

	t.Run("anonymous admin request redirects", func(t *testing.T) {
		reached = false
		request := httptest.NewRequest(http.MethodGet, "/vi/admin/settings", nil)
		recorder := httptest.NewRecorder()

		protected.ServeHTTP(recorder, request)

		require.Equal(t, http.StatusSeeOther, recorder.Code)
		assert.Equal(t, "/vi/login", recorder.Header().Get("Location"))
		assert.False(t, reached)
	})

	t.Run("authorized request passes through", func(t *testing.T) {
		reached = false
		request := httptest.NewRequest(http.MethodGet, "/vi/admin/settings", nil)
		ctx := ctxutil.WithAuthUser(request.Context(), claimsWithRole(sec.RoleSuperAdmin))
		recorder := httptest.NewRecorder()

		protected.ServeHTTP(recorder, request.WithContext(ctx))

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, reached)
	})

	t.Run("public request passes through", func(t *testing.T) {
		reached = false
		request := httptest.NewRequest(http.MethodGet, "/en/comics", nil)
		recorder := httptest.NewRecorder()

		protected.ServeHTTP(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, reached)
	})
}
