package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/extkit/observability"
)

// Metrics records request count, duration and in-flight requests. The
// matched route template is used as the route label to keep cardinality
// bounded.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		m.RecordRequestStart(ctx)
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequestEnd(ctx, route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
