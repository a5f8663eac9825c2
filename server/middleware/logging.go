package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/extkit/logger"
)

// RequestLogger logs every request with method, route, status and
// duration. The health path is skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		fields := logger.DurationFields("http.request", duration)
		fields["method"] = c.Request.Method
		fields["path"] = c.Request.URL.Path
		fields[logger.FieldStatus] = status
		if id := c.GetString(RequestIDKey); id != "" {
			fields[logger.FieldRequestID] = id
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}
		if duration > 500*time.Millisecond {
			fields["slow"] = true
		}

		switch {
		case status >= 500:
			log.Error("Request completed", fields)
		case status >= 400:
			log.Warn("Request completed", fields)
		default:
			log.Debug("Request completed", fields)
		}
	}
}
