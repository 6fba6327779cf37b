package middleware

import (
	"strconv"
	"time"

	"reflexduel/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records the latency of every routed request.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
