package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/models"
)

// SessionCookie holds the signed session token.
const SessionCookie = "auth_token"

const userKey = "user"

// SessionResolver turns a session token into the current user record.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

type AuthMiddleware struct {
	sessions SessionResolver
}

func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireAuth rejects requests without a valid session. Browsers are sent to the
// login page, API clients get a 401.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			m.unauthorized(c, "Please log in to continue.")
			return
		}
		user, err := m.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !isSessionError(err) {
				log.Printf("Session lookup failed: %v", err)
			}
			ClearSession(c)
			m.unauthorized(c, "Your session has expired. Please log in again.")
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth loads the user when a valid session is present and carries on either
// way.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if user, err := m.sessions.Resolve(c.Request.Context(), token); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) unauthorized(c *gin.Context, message string) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": message})
		return
	}
	SetFlash(c, models.Denied(models.RouteLogin, message))
	c.Redirect(http.StatusSeeOther, models.RouteLogin)
	c.Abort()
}

func isSessionError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrUserDisabled)
}

func extractToken(c *gin.Context) string {
	// Bearer token format: "Bearer <token>"
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return ""
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
	c.Set("user_id", user.ID)
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SetSession stores the session token in an HTTP-only cookie. A zero maxAge makes it
// a browser-session cookie.
func SetSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

func ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
}

// WantsJSON reports whether the client asked for JSON instead of redirects.
func WantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
