package logger

import (
	"context"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	partnerIDKey contextKey = "partner_id"
	actorKey     contextKey = "actor"
	orderIDKey   contextKey = "order_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID records the request id on ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithPartner records the partner the request acts on
func WithPartner(ctx context.Context, partnerID uuid.UUID) context.Context {
	return context.WithValue(ctx, partnerIDKey, partnerID)
}

// WithActor records the caller
func WithActor(ctx context.Context, actor shared.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// WithOrder records the order being worked on
func WithOrder(ctx context.Context, orderID uuid.UUID) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

// RequestID returns the request id on ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// PartnerID returns the partner on ctx, if any
func PartnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(partnerIDKey).(uuid.UUID)
	return id, ok
}

// ActorFrom returns the caller on ctx, if any
func ActorFrom(ctx context.Context) (shared.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(shared.Actor)
	return actor, ok
}

// OrderID returns the order on ctx, if any
func OrderID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(orderIDKey).(uuid.UUID)
	return id, ok
}

// Fields returns the correlation fields present on ctx: trace and span ids,
// request id, partner, actor and order
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := PartnerID(ctx); ok {
		fields = append(fields, zap.String("partner_id", id.String()))
	}
	if actor, ok := ActorFrom(ctx); ok {
		fields = append(fields,
			zap.String("actor_id", actor.ID.String()),
			zap.String("actor_role", string(actor.Role)),
		)
	}
	if id, ok := OrderID(ctx); ok {
		fields = append(fields, zap.String("order_id", id.String()))
	}
	return fields
}

// L returns the logger on ctx enriched with the correlation fields on ctx.
//
//	logger.L(ctx).Info("deliverable stored", zap.String("key", key))
func L(ctx context.Context) *zap.Logger {
	return Enrich(ctx, FromContext(ctx))
}

// Enrich adds the correlation fields on ctx to base
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
