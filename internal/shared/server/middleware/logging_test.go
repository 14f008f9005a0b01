package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Principal(), Logging())
	router.POST("/api/v1/employees/:id/skill-feedback", func(c *gin.Context) {
		c.Set("employeeId", int64(12))
		c.Set("skillId", int64(3))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/employees/12/skill-feedback", nil)
	req.Header.Set("X-Client-Id", "hr-portal")
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected log output")
	}
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "principal", "employee_id", "skill_id", "duration_ms", "status", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["principal"] != "client:hr-portal" {
		t.Fatalf("unexpected principal: %v", payload["principal"])
	}
	if payload["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["employee_id"] != float64(12) {
		t.Fatalf("unexpected employee_id: %v", payload["employee_id"])
	}
	if payload["route"] != "/api/v1/employees/:id/skill-feedback" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}
