package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

const logFieldsKey = "middleware.log_fields"

// AddLogFields attaches fields to the access log line of the current request.
func AddLogFields(c *gin.Context, fields ...zap.Field) {
	existing, _ := c.Get(logFieldsKey)
	collected, _ := existing.([]zap.Field)
	c.Set(logFieldsKey, append(collected, fields...))
}

// RequestLogger writes one access log line per request. Requests are keyed by
// route template so ids in the path stay out of the route field. Server errors
// log at error level and client errors at warn.
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", routeTemplate(c)),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Int64("bytes_in", c.Request.ContentLength),
			zap.Int("bytes_out", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if extra, ok := c.Get(logFieldsKey); ok {
			if extra, ok := extra.([]zap.Field); ok {
				fields = append(fields, extra...)
			}
		}

		reqLogger := logger.WithContext(c.Request.Context())

		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("Request completed with errors", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= http.StatusInternalServerError:
			reqLogger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("Request rejected", fields...)
		default:
			reqLogger.Info("Request completed", fields...)
		}
	}
}
