package middleware

import (
	"strconv"
	"time"

	appmetrics "rulify/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records per-request counters and latency histograms.
// The route template (not the raw path) is used as the endpoint label so
// that /rules/:id does not explode cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		appmetrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		appmetrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint, status).Observe(time.Since(start).Seconds())
	}
}
