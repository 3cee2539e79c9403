package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request metrics and logs each request.
func Middleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		// Use the route template so per-actor paths share one label.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(status), duration.Seconds())
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, duration)
	}
}
