package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/errors"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandlerMiddleware turns panics and errors attached with c.Error into
// JSON responses
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal Server Error",
					"message": "An unexpected error occurred",
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := errors.As(err); ok {
			c.JSON(appErr.Code, gin.H{"error": appErr.Message})
			return
		}

		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
