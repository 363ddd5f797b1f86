package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestTimeout(30 * time.Second))
	var deadline time.Time
	var ok bool
	r.GET("/x", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !ok {
		t.Fatalf("request context has no deadline")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 30*time.Second {
		t.Fatalf("deadline remaining=%s want within 30s", remaining)
	}
}

func TestRequestTimeoutDisabledWhenZero(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestTimeout(0))
	var ok bool
	r.GET("/x", func(c *gin.Context) {
		_, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if ok {
		t.Fatalf("zero timeout must not set a deadline")
	}
}
