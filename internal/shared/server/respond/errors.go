package respond

import (
	"github.com/gin-gonic/gin"

	"skill-recommender/internal/shared/telemetry"
)

// ErrorBody is the error envelope every failed request carries. Code is a
// stable machine-readable kind such as not_found or model_not_loaded.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs the failure and aborts with the error envelope. Server-side
// failures log at error level, client mistakes at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if principal := c.GetString("principal"); principal != "" {
		fields["principal"] = principal
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	JSON(c, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
	c.Abort()
}
