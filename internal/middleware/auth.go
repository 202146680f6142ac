// internal/middleware/auth.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/imi-storefront/internal/auth"
)

// IdentitySource reports the identity of the current session, or nil
// while anonymous.
type IdentitySource interface {
	Identity() *auth.Identity
}

// SessionContext puts the observed session identity on the request so
// handlers and the request logger can read it.
func SessionContext(source IdentitySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity := source.Identity(); identity != nil {
			c.Set("user_id", identity.UserID)
			c.Set("username", identity.Username)
			c.Set("session_status", string(auth.StatusAuthenticated))
		} else {
			c.Set("session_status", string(auth.StatusAnonymous))
		}
		c.Next()
	}
}
