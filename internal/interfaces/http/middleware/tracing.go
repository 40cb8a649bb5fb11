// Package middleware provides the HTTP middleware of the order API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// untracedPrefix covers the liveness and readiness endpoints
const untracedPrefix = "/api/v1/system/"

// Tracing starts a server span per request, named after the route pattern.
// Health endpoints are not traced. An empty service name turns tracing off.
func Tracing(service string) gin.HandlerFunc {
	if service == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(service, otelgin.WithFilter(func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, untracedPrefix)
	}))
}

// TracingAttributeInjector tags the current span with the request id and
// the caller. It must run after RequestID and Identity.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(callerAttributes(c)...)
		}
		c.Next()
	}
}

func callerAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := GetRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if partnerID, ok := GetPartnerID(c); ok {
		attrs = append(attrs, attribute.String("partner_id", partnerID.String()))
	}
	if actor, ok := GetActor(c); ok {
		attrs = append(attrs,
			attribute.String("actor_id", actor.ID.String()),
			attribute.String("actor_role", string(actor.Role)),
		)
	}
	return attrs
}

// SpanErrorMarker fails the span of any 4xx or 5xx response, with the status
// text as description. It must run after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		span := trace.SpanFromContext(c.Request.Context())
		if status < http.StatusBadRequest || !span.IsRecording() {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
