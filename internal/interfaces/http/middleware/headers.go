package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the headers of a JSON API that never serves pages.
// Strict-Transport-Security is only sent for a positive hstsMaxAge.
func SecurityHeaders(hstsMaxAge time.Duration) gin.HandlerFunc {
	headers := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	if secs := int64(hstsMaxAge / time.Second); secs > 0 {
		headers["Strict-Transport-Security"] = "max-age=" + strconv.FormatInt(secs, 10) + "; includeSubDomains"
	}

	return func(c *gin.Context) {
		for name, value := range headers {
			c.Header(name, value)
		}
		c.Next()
	}
}
