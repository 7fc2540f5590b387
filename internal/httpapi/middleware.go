package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
)

// corsMiddleware sets CORS headers for allowedOrigin and answers preflight
// requests.
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request once it has been answered and counts it
// when m is non-nil.
func requestLogger(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if m != nil {
			m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		}

		l := log.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"route":   route,
			"status":  status,
			"latency": time.Since(start).String(),
		})
		if status >= http.StatusInternalServerError {
			l.Warn("Request failed")
		} else {
			l.Debug("Request served")
		}
	}
}
