package telemetry

import (
	"context"
	"fmt"

	"github.com/editdesk/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap/zapcore"
)

func newLoggerProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

// LogCore returns a zap core that forwards entries at or above level to the
// OTLP log pipeline. With log export off it is a no-op core, so teeing it
// into a logger is always safe.
func (p *Providers) LogCore(name string, level zapcore.LevelEnabler) (zapcore.Core, error) {
	if p == nil || p.logs == nil {
		return zapcore.NewNopCore(), nil
	}
	return bridgeCore(p.logs, name, level)
}

// bridgeCore wraps the otelzap core, which accepts every level, in the level
// of the process logger
func bridgeCore(provider *sdklog.LoggerProvider, name string, level zapcore.LevelEnabler) (zapcore.Core, error) {
	core := otelzap.NewCore(name, otelzap.WithLoggerProvider(provider))
	filtered, err := zapcore.NewIncreaseLevelCore(core, level)
	if err != nil {
		return nil, fmt.Errorf("failed to bridge logs: %w", err)
	}
	return filtered, nil
}
