package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/metrics"
)

// Metrics records request counts and latency by route template, so ticket ids do not
// explode the label space.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
