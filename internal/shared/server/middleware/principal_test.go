package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPrincipalFromHeaderOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Principal())
	router.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFromContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("X-Client-Id", "hr-portal")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Body.String() != "client:hr-portal" {
		t.Fatalf("unexpected principal %q", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Body.String() != "ip:10.1.2.3" {
		t.Fatalf("unexpected principal %q", resp.Body.String())
	}
}
