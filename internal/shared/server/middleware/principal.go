package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Principal identifies the caller for rate limiting and logs. Callers may
// name themselves with X-Client-Id; otherwise the client IP is used. It does
// not authenticate.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if id := strings.TrimSpace(c.GetHeader("X-Client-Id")); id != "" {
			c.Set(principalKey, "client:"+id)
		} else {
			c.Set(principalKey, "ip:"+c.ClientIP())
		}
		c.Next()
	}
}

// PrincipalFromContext fetches the principal set by the Principal middleware.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(principalKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
