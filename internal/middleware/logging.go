package middleware

import (
	"strconv"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/metrics"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs every request and records it in the HTTP metrics
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method

		// route template keeps label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())

		userID := c.GetString("userId")

		event := logger.Log.Info()
		if status >= 400 {
			event = logger.Log.Warn()
		}
		if status >= 500 {
			event = logger.Log.Error()
		}

		// message bodies never reach the log
		event.
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Str("user_id", userID).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}
