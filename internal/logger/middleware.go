package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = time.Second

// GinMiddleware logs one entry per request once the handler chain has run.
// Server errors log at error level and client errors at warn.
func GinMiddleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"route":  route,
			"status": c.Writer.Status(),
			"size":   c.Writer.Size(),
			"client": c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		entry := l.WithFields(fields).WithDuration(elapsed)

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request failed with server error")
		case status >= 400:
			entry.Warn("Request failed with client error")
		case elapsed > SlowRequestThreshold:
			entry.Warnf("Slow request: %v", elapsed)
		default:
			entry.Debug("Request served")
		}
	}
}
