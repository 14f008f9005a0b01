package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"skill-recommender/internal/shared/telemetry"
)

const contentTypeJSON = "application/json; charset=utf-8"

// JSON encodes payload with go-json and writes it with status.
func JSON(c *gin.Context, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		telemetry.Error("http.encode_failed", map[string]any{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("requestId"),
			"error":      err,
		})
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, contentTypeJSON, body)
}

// OK writes payload with 200.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}
