package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/drone-relay/internal/observability"
)

// LoggingMiddleware logs each request with slog and feeds the latency
// histogram. Drone commands get their own log field, and the histogram is
// labeled by route template so every command shares one series.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", duration.String(),
			"ip", c.ClientIP(),
		}
		if cmd := c.Param("cmd"); cmd != "" {
			attrs = append(attrs, "command", cmd)
		}
		slog.Info("request", attrs...)

		route := c.FullPath()
		if route == "" {
			route = path
		}
		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(status),
		).Observe(duration.Seconds())
	}
}
