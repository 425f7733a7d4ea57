package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		requestID := c.GetString("request_id")

		// Metered routes carry their quota operation in the access line
		op := c.GetString(ContextRateLimitOperation)
		if op == "" {
			op = "-"
		}

		log.Printf("[%s] %s %s - %d - %v - %s - op=%s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			c.ClientIP(),
			op,
		)
	}
}
