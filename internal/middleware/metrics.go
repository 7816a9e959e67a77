package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/pkg/metrics"
)

// MetricsMiddleware records latency per route template and status class
// (2xx, 4xx, 5xx). Raw paths are never used as labels.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		class := strconv.Itoa(c.Writer.Status()/100) + "xx"
		metrics.LatencyBucket.WithLabelValues(route, class).Observe(time.Since(start).Seconds())
	}
}
