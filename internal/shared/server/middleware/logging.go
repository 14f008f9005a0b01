package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/shared/telemetry"
)

// Logging emits a structured log per request. Handlers may set employeeId,
// skillId and predictionSource on the context to enrich the line.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		employeeID, _ := c.Get("employeeId")
		skillID, _ := c.Get("skillId")
		source, _ := c.Get("predictionSource")

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"principal":   PrincipalFromContext(c),
			"employee_id": employeeID,
			"skill_id":    skillID,
			"source":      source,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
