package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/model"
)

// AuthCookieName is the HTTP-only cookie carrying the raw signed token.
const AuthCookieName = "auth_token"

// userContextKey is where Authenticate stores the loaded user for
// handlers and downstream middleware.
const userContextKey = "user"

// ExtractToken pulls the raw token from the request: the auth cookie is
// preferred, with an Authorization: Bearer header as fallback. An empty
// string means the request carries no credential at all.
func ExtractToken(c echo.Context) string {
	if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Authenticate returns middleware enforcing a valid session and, when
// roles are given, membership in that flat allowed set. On success the
// freshly loaded user is stored in the context under "user"; handlers
// therefore see current role/school/active state, never stale token
// claims. Gate failures map to 401/403 JSON bodies and nothing else
// leaks about why verification failed.
func Authenticate(g *auth.Gate, roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := g.Authenticate(c.Request().Context(), ExtractToken(c), roles...)
			switch {
			case err == nil:
				c.Set(userContextKey, u)
				return next(c)
			case err == auth.ErrForbidden:
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			case err == auth.ErrUnauthenticated:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			default:
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "auth check failed"})
			}
		}
	}
}

// CurrentUser returns the user placed in context by Authenticate. The
// second result is false on routes that skipped the middleware.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userContextKey).(model.User)
	return u, ok
}
