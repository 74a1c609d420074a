package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/recallcontext/backend/internal/auth"
	"github.com/recallcontext/backend/pkg/response"
)

// ContextIdentity is the key for the caller identity in gin context.
const ContextIdentity = "identity"

// Authenticate resolves the caller identity. With jwtService nil every request is
// attributed to defaultIdentity; otherwise a valid bearer token is required.
func Authenticate(jwtService *auth.JWTService, defaultIdentity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Set(ContextIdentity, defaultIdentity)
			c.Next()
			return
		}
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, claims.Subject)
		c.Next()
	}
}

// IdentityFrom returns the identity set by Authenticate.
func IdentityFrom(c *gin.Context) string {
	return c.GetString(ContextIdentity)
}

// bearerToken reads the Authorization header, falling back to ?token= for websocket clients.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
