package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"studio_app_echo/internal/middleware"
	"studio_app_echo/internal/services"
)

const sessionDuration = 5 * 24 * time.Hour

// AuthHandler exchanges Firebase ID tokens for admin session cookies
type AuthHandler struct {
	authClient   services.AdminAuth
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. authClient may be nil when Firebase is not configured.
func NewAuthHandler(authClient services.AdminAuth, secureCookie bool) *AuthHandler {
	return &AuthHandler{authClient: authClient, secureCookie: secureCookie}
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.authClient == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication is not configured")
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}

	ctx := c.Request().Context()
	if _, err := h.authClient.VerifyIDToken(ctx, tokenString); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	cookieValue, err := h.authClient.SessionCookie(ctx, tokenString, sessionDuration)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session").SetInternal(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	middleware.ClearSessionCookie(c)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
