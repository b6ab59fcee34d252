package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightcrm/brightcrm-auth/internal/session"
)

const (
	sessionUserIDKey = "sessionUserID"
	sessionClaimsKey = "sessionClaims"
)

// Auth validates the session cookie (or a bearer token) and attaches
// session claims.
type Auth struct {
	Sessions   *session.Manager
	CookieName string
}

// RequireSession ensures the request carries a valid session.
func (m *Auth) RequireSession(c *gin.Context) {
	token := m.sessionToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session", "error_description": "Authentication required."})
		return
	}
	userID, claims, err := m.Sessions.Validate(token, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session", "error_description": "Session expired or invalid."})
		return
	}
	c.Set(sessionUserIDKey, userID)
	c.Set(sessionClaimsKey, claims)
	c.Next()
}

// RequireRole aborts with 403 unless the session holds the role.
func (m *Auth) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetSessionClaims(c)
		if !ok || !hasRole(claims.Roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access_denied", "error_description": "Insufficient permissions."})
			return
		}
		c.Next()
	}
}

func (m *Auth) sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(m.CookieName); err == nil && strings.TrimSpace(token) != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetSessionUserID returns the authenticated account id.
func GetSessionUserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(sessionUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}

// GetSessionClaims returns the session claims attached by RequireSession.
func GetSessionClaims(c *gin.Context) (*session.Claims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*session.Claims)
	return claims, ok
}

func hasRole(roles []string, role string) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
