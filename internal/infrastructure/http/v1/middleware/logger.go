package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stockroom/pkg/logger"
)

// Logger logs each request with its latency and status. Health-check and scrape
// traffic is logged at debug level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		l := log.WithContext(c.Request.Context())
		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			kv = append(kv, "error", errs)
		}

		if strings.HasPrefix(path, "/health") || path == "/metrics" {
			l.Debugw("http request", kv...)
			return
		}
		l.Infow("http request", kv...)
	}
}
