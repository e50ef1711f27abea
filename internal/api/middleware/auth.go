// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the header carrying the credential.
const APIKeyHeader = "X-API-Key"

const apiKeyContextKey = "api_key"

// AuthMiddleware extracts the API key credential from the request. Validity
// is decided downstream by the credit authority; this middleware only
// enforces presence when the process runs gated.
type AuthMiddleware struct {
	open bool
}

// NewAuthMiddleware creates a new AuthMiddleware. open selects the
// development bypass where requests without a key are admitted.
func NewAuthMiddleware(open bool) *AuthMiddleware {
	return &AuthMiddleware{open: open}
}

// RequireAPIKey returns a gin middleware that extracts the API key and
// stores it in the context for downstream handlers.
func (m *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)

		if apiKey == "" && !m.open {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "API key required",
			})
			return
		}

		c.Set(apiKeyContextKey, apiKey)

		c.Next()
	}
}

// GetAPIKey retrieves the API key from the gin context.
func GetAPIKey(c *gin.Context) string {
	if apiKey, exists := c.Get(apiKeyContextKey); exists {
		return apiKey.(string)
	}
	return ""
}
