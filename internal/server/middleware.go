package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledger-bot/internal/logger"
)

// RequestLogger logs one line per request. Bodies are not logged: webhook
// payloads carry the correspondent's messages.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Infow("HTTP request",
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}

// CronAuth requires "Authorization: Bearer <secret>" when secret is set.
func CronAuth(secret string) gin.HandlerFunc {
	want := []byte("Bearer " + secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
