package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"

	"studio_app_echo/internal/services"
)

// SessionCookieName is the cookie holding a Firebase session
const SessionCookieName = "session"

// Context keys set for authenticated admin requests
const (
	ContextUserUID   = "userUID"
	ContextUserEmail = "userEmail"
)

// RequireAdmin verifies a Firebase bearer ID token or session cookie and checks the
// token's email against adminEmails. A nil authClient answers 503.
func RequireAdmin(authClient services.AdminAuth, adminEmails []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		allowed[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	configured := !isNil(authClient)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !configured {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication is not configured")
			}

			ctx := c.Request().Context()

			var uid, email string
			if bearer, ok := bearerToken(c); ok {
				token, err := authClient.VerifyIDToken(ctx, bearer)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
				}
				uid, email = token.UID, claimString(token.Claims, "email")
			} else {
				cookie, err := c.Cookie(SessionCookieName)
				if err != nil || cookie.Value == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
				}
				token, err := authClient.VerifySessionCookie(ctx, cookie.Value)
				if err != nil {
					ClearSessionCookie(c)
					return echo.NewHTTPError(http.StatusUnauthorized, "Session expired")
				}
				uid, email = token.UID, claimString(token.Claims, "email")
			}

			if _, ok := allowed[strings.ToLower(email)]; !ok || email == "" {
				return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
			}

			c.Set(ContextUserUID, uid)
			c.Set(ContextUserEmail, email)

			return next(c)
		}
	}
}

// ClearSessionCookie expires the session cookie in the browser
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", false
	}
	return token, true
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

// isNil catches a nil *auth.Client stored in the interface
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
