package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name   string
		maxAge time.Duration
		hsts   string
	}{
		{name: "gateway terminates tls", maxAge: 0, hsts: ""},
		{name: "one year", maxAge: 365 * 24 * time.Hour, hsts: "max-age=31536000; includeSubDomains"},
		{name: "below a second", maxAge: time.Millisecond, hsts: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(SecurityHeaders(tt.maxAge))
			router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, tt.hsts, w.Header().Get("Strict-Transport-Security"))
		})
	}
}
