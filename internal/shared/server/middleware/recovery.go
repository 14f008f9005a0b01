package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/server/respond"
	"skill-recommender/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 internal_error response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncHTTPPanic(c.FullPath())
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"principal":  PrincipalFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"error":      rec,
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
