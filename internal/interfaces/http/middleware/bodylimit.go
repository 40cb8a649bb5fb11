package middleware

import (
	"net/http"
	"strconv"

	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps the request body at limit bytes. A declared Content-Length
// over the limit is refused up front with 413; a body without a length fails
// the handler's read once it passes the limit.
func BodyLimit(limit int64) gin.HandlerFunc {
	tooLarge := "Request body exceeds " + strconv.FormatInt(limit, 10) + " bytes"
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, tooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
