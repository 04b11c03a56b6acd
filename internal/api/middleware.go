package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yourname/sleepcoach/internal"
)

// RequestIDMiddleware tags each request with X-Request-ID, generating one if absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// AccessLogMiddleware writes one debug line per request.
func AccessLogMiddleware(logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("[request_id=%s] %s %s -> %d in %s",
			c.GetString("request_id"), c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
