package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets response headers for a JSON-only API
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		// conversation data must not be cached by intermediaries
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
