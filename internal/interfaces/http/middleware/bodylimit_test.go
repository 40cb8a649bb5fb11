package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// echoLength replies 200 with the body length, or 400 once the reader trips
// the limit
func echoLength(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		c.String(http.StatusBadRequest, "cut at %d", tooBig.Limit)
		return
	}
	c.String(http.StatusOK, "%d", len(body))
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		body     string
		declared bool
		wantCode int
		wantBody string
	}{
		{"within limit", 64, "small body", true, http.StatusOK, "10"},
		{"exactly at limit", 4, "abcd", true, http.StatusOK, "4"},
		{"declared length over limit", 100, strings.Repeat("x", 200), true, http.StatusRequestEntityTooLarge, "exceeds 100 bytes"},
		{"undeclared length over limit", 50, strings.Repeat("x", 100), false, http.StatusBadRequest, "cut at 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(RequestID(), BodyLimit(tt.limit))
			engine.POST("/upload", echoLength)

			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tt.body))
			if !tt.declared {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantCode == http.StatusRequestEntityTooLarge {
				assert.Contains(t, w.Body.String(), dto.ErrCodeRequestTooLarge)
				assert.Contains(t, w.Body.String(), w.Header().Get(HeaderRequestID))
			}
		})
	}
}
