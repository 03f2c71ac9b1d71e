package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"guardians/internal/logging"
)

var reqLog = logging.L("http")

// RequestLogger logs one line per request in place of gin.Logger
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"ip", c.ClientIP(),
			logging.KeyDurationMs, time.Since(start).Milliseconds(),
		}
		if status >= 500 {
			reqLog.Warn("request", attrs...)
			return
		}
		reqLog.Debug("request", attrs...)
	}
}
