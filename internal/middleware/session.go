// Package middleware provides shared request processing: the session gate,
// role and permission checks, the device cookie, and the Redis-backed
// response cache and rate limiter.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/madeira/residential-services/internal/auth"
)

// SessionCookie is the HTTP-only cookie carrying the session artifact.
const SessionCookie = "session_token"

const (
	loginPath     = "/auth/login"
	dashboardPath = "/dashboard"
)

// principalKey is the context key under which the decoded principal is stored.
const principalKey = "principal"

// DefaultPublicPrefixes lists the path prefixes exempt from authentication.
// Every other path requires a valid session artifact.
var DefaultPublicPrefixes = []string{
	"/auth",
	"/healthz",
	"/test-connection",
	"/test",
	"/api/public",
	"/assets",
	"/favicon.ico",
}

// DefaultAdminPrefixes lists the prefixes that additionally require the
// admin role claim.
var DefaultAdminPrefixes = []string{
	"/admin",
	"/v1/admin",
}

// GateConfig parameterizes the session gate. Zero-value fields fall back
// to the defaults above.
type GateConfig struct {
	Codec          *auth.SessionCodec
	PublicPrefixes []string
	AdminPrefixes  []string
}

// SessionGate classifies each request as public or protected and, for
// protected paths, requires a valid session artifact (cookie or Bearer
// header). It is a pure function of the path and the decoded claims:
//
//   - public path           -> allow, no decode attempted
//     (except the login page, which bounces already-authenticated users
//     to the dashboard)
//   - protected, no session -> deny, redirect target /auth/login
//   - protected, session    -> allow; admin-prefixed paths additionally
//     require role == "admin"
func SessionGate(cfg GateConfig) echo.MiddlewareFunc {
	public := cfg.PublicPrefixes
	if public == nil {
		public = DefaultPublicPrefixes
	}
	admin := cfg.AdminPrefixes
	if admin == nil {
		admin = DefaultAdminPrefixes
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if hasPrefix(path, public) {
				// An authenticated user revisiting the login page is a
				// no-op state; send them back to the dashboard.
				if path == loginPath {
					if p, _, err := cfg.Codec.Decode(artifactFrom(c)); err == nil && p.ID != "" {
						return c.Redirect(http.StatusFound, dashboardPath)
					}
				}
				return next(c)
			}

			principal, _, err := cfg.Codec.Decode(artifactFrom(c))
			if err != nil {
				return denyUnauthenticated(c)
			}

			if hasPrefix(path, admin) && principal.Role != "admin" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}

			c.Set(principalKey, principal)
			c.Set("user_id", principal.ID)
			c.Set("role", principal.Role)
			return next(c)
		}
	}
}

// PrincipalFrom retrieves the decoded principal the session gate stored in
// the request context.
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(principalKey).(auth.Principal)
	return p, ok
}

// artifactFrom extracts the session artifact from the session cookie or,
// for API clients, from a Bearer Authorization header.
func artifactFrom(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// denyUnauthenticated redirects browsers to the login page and answers API
// clients with a 401 carrying the same redirect target.
func denyUnauthenticated(c echo.Context) error {
	if strings.Contains(c.Request().Header.Get("Accept"), "text/html") {
		return c.Redirect(http.StatusFound, loginPath)
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error":    "unauthorized",
		"redirect": loginPath,
	})
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
