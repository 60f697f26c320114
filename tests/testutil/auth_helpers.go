package testutil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MockAuth stands in for middleware.EnsureValidToken. It sets the same context keys
// for the subject named in the X-Test-Subject header, falling back to subject.
// With neither, the request is rejected the way a missing bearer token is.
func MockAuth(subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub := c.GetHeader("X-Test-Subject")
		if sub == "" {
			sub = subject
		}
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		c.Set("user_id", sub)
		c.Set("access_token", "mock-token-"+sub)
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
