// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package guard implements coarse route protection for locale-prefixed pages.

While the rbac resolver answers fine-grained menu/action questions for the
API, the guard sits in front of whole page areas: paths like
/vi/admin/settings are matched against protected prefixes and the caller's
role from the verified access token. Rejections redirect to the
locale-qualified login or forbidden page instead of returning a JSON error,
because these routes serve browsers, not API clients.

The token claims are the single source of truth; the guard never consults
the database.
*/
package guard

import (
	"net/http"
	"path"
	"strings"

	"golang.org/x/text/language"

	"github.com/inkframe/inkframe/internal/platform/ctxutil"
	"github.com/inkframe/inkframe/internal/platform/sec"
)

// # Rules & Results

// Rule protects one path prefix (locale-stripped) with a role floor.
type Rule struct {
	Prefix      string
	MinimumRole sec.UserRole
}

// Decision is the guard's verdict for one request path.
type Decision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// RedirectTo is the locale-qualified target when Allowed is false.
	RedirectTo string
}

var allow = Decision{Allowed: true}

// # Guard

// DefaultLocale is used when the path carries no recognizable locale prefix.
const DefaultLocale = "en"

// supportedLocales are the site locales a path prefix may select.
var supportedLocales = []language.Tag{
	language.English,
	language.Vietnamese,
	language.Japanese,
}

// Guard evaluates protected-prefix rules against locale-qualified paths.
//
// The zero value is unusable; construct with [New].
type Guard struct {
	rules   []Rule
	matcher language.Matcher
}

// New creates a guard with the standard area rules: the admin area requires
// super_admin, the management area requires admin or above.
func New() *Guard {
	return NewWithRules([]Rule{
		{Prefix: "/admin", MinimumRole: sec.RoleSuperAdmin},
		{Prefix: "/management", MinimumRole: sec.RoleAdmin},
	})
}

// NewWithRules creates a guard with a custom rule set. Longer prefixes win
// over shorter ones, so overlapping rules behave predictably.
func NewWithRules(rules []Rule) *Guard {
	return &Guard{
		rules:   rules,
		matcher: language.NewMatcher(supportedLocales),
	}
}

/*
Evaluate decides whether a request path may proceed.

Description: The path is normalized before any matching: duplicate slashes
and dot segments are collapsed so spellings like //admin or /en/x/../admin
resolve to the same rule as their canonical form. The locale prefix is then
stripped, so /vi/admin and /admin hit the same rule. Anonymous callers are
sent to the locale-qualified login page; authenticated callers below the
role floor are sent to the forbidden page. Paths matching no rule always
pass, authenticated or not.

Parameters:
  - requestPath: string (the raw request path)
  - claims: *sec.AuthClaims (nil when unauthenticated)

Returns:
  - Decision: Allow, or a redirect target
*/
func (guard *Guard) Evaluate(requestPath string, claims *sec.AuthClaims) Decision {
	locale, rest := guard.SplitLocale(path.Clean("/" + requestPath))

	rule, protected := guard.match(rest)
	if !protected {
		return allow
	}

	if claims == nil {
		return Decision{RedirectTo: "/" + locale + "/login"}
	}

	if !sec.ParseRole(claims.Role).AtLeast(rule.MinimumRole) {
		return Decision{RedirectTo: "/" + locale + "/forbidden"}
	}

	return allow
}

// match finds the most specific rule covering the locale-stripped path.
func (guard *Guard) match(path string) (Rule, bool) {
	var best Rule
	found := false

	for _, rule := range guard.rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		// Prefix must end on a segment boundary: /administration is not /admin
		if len(path) > len(rule.Prefix) && path[len(rule.Prefix)] != '/' {
			continue
		}
		if !found || len(rule.Prefix) > len(best.Prefix) {
			best = rule
			found = true
		}
	}

	return best, found
}

/*
SplitLocale extracts the locale prefix from a path.

Description: The first segment is matched against the supported site locales
via the x/text matcher, so regional variants ("en-US") collapse to their
base locale. A first segment that is not a recognizable locale leaves the
path untouched and selects the default locale.

Parameters:
  - path: string

Returns:
  - string: The resolved locale ("en", "vi", "ja")
  - string: The path with the locale prefix stripped ("/vi/admin" → "/admin")
*/
func (guard *Guard) SplitLocale(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/")
	segment, rest, _ := strings.Cut(trimmed, "/")
	if segment == "" {
		return DefaultLocale, path
	}

	desired, err := language.Parse(segment)
	if err != nil {
		return DefaultLocale, path
	}

	matched, _, confidence := guard.matcher.Match(desired)
	if confidence < language.High {
		return DefaultLocale, path
	}

	base, _ := matched.Base()
	return base.String(), "/" + rest
}

// # Middleware

// Middleware applies the guard to every request. API routes are unaffected
// as long as no rule prefix overlaps them.
//
// It must be mounted after the authentication interceptor so claims are
// available in the context.
func (guard *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			decision := guard.Evaluate(request.URL.Path, ctxutil.GetAuthUser(request.Context()))
			if !decision.Allowed {
				http.Redirect(writer, request, decision.RedirectTo, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
