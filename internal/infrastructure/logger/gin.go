package logger

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// statusLevel picks the level an access line is written at
func statusLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// GinMiddleware writes one access line per request and puts a logger bound
// to the route on the request context. Correlation fields set by earlier
// middleware (request id, partner, actor) end up on the access line.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		routed := base.With(zap.String("method", c.Request.Method), zap.String("route", c.FullPath()))
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), routed))

		c.Next()

		status := c.Writer.Status()
		ce := routed.Check(statusLevel(status), "http request")
		if ce == nil {
			return
		}
		fields := append(Fields(c.Request.Context()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if errs := c.Errors.Errors(); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs))
		}
		ce.Write(fields...)
	}
}

// Recovery answers a panicking handler with a bare 500 and logs the panic
// with the request's correlation fields. Broken client connections are left
// to gin.
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		Enrich(c.Request.Context(), base).Error("panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", recovered),
			zap.Stack("stacktrace"),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
