package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"guardians/internal/services"
)

// ClaimsKey is where AuthMiddleware stores the validated claims
const ClaimsKey = "guardians.claims"

// BearerToken extracts a token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return c.Query("token")
}

// AuthMiddleware requires a valid token. A nil auth disables the check.
func AuthMiddleware(auth *services.AuthService, sl *SecurityLogger) gin.HandlerFunc {
	validator := NewInputValidator()
	return func(c *gin.Context) {
		if auth == nil {
			c.Next()
			return
		}
		token := BearerToken(c)
		if token == "" || !validator.ValidateToken(token) {
			sl.LogFailedAuth(c.ClientIP(), "missing or malformed token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			sl.LogFailedAuth(c.ClientIP(), err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
