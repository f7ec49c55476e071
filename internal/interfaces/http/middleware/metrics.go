package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
)

// Metrics returns middleware recording request count, duration, and
// in-flight gauge. The route template (e.g. /api/v1/annotations/:id/confirm)
// is used as the path label to keep cardinality bounded; unmatched requests
// are collapsed into a single label.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		start := time.Now()
		if m.HTTPActiveRequests != nil {
			active := m.HTTPActiveRequests.WithLabelValues(c.Request.Method, path)
			active.Inc()
			defer active.Dec()
		}

		c.Next()

		prometheus.RecordHTTPRequest(m, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
