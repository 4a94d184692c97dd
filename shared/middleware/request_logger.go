package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

// RequestID reuses the incoming X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(httpx.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(httpx.HeaderRequestID, id)
		}
		c.Set(httpx.KeyRequestID, id)
		c.Header(httpx.HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request with its latency
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", c.GetString(httpx.KeyRequestID),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}
