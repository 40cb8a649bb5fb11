package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/editdesk/backend/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// sum adds the data points of an int64 counter whose attributes contain attr
func sum(rm metricdata.ResourceMetrics, name string, attr *attribute.KeyValue) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				if attr != nil {
					if v, ok := dp.Attributes.Value(attr.Key); !ok || v != attr.Value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func gaugeValue(rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{}, "test", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.TracingEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())
	assert.NotNil(t, p.Meter("x"))

	core, err := p.LogCore("editdesk-backend", zapcore.DebugLevel)
	require.NoError(t, err)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
	require.NoError(t, p.Shutdown(context.Background()))
}

type recordingExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range records {
		e.bodies = append(e.bodies, records[i].Body().AsString())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) got() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestBridgeCore_ExportsAtLoggerLevel(t *testing.T) {
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	core, err := bridgeCore(provider, "editdesk-backend", zapcore.InfoLevel)
	require.NoError(t, err)
	log := zap.New(core)

	log.Debug("claim taken")
	log.Info("order accepted", zap.String("order_id", uuid.NewString()))
	log.Warn("fast-path dispatch degraded")

	assert.Equal(t, []string{"order accepted", "fast-path dispatch degraded"}, exporter.got())
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "root:AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "root:TraceIDRatioBased")
}

func TestServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	orderID := uuid.New()
	ctx, span := StartServiceSpan(context.Background(), "fulfillment", "accept",
		SpanAttrOrderID, orderID,
		SpanAttrActorRole, "editor",
		"attempt", 2,
	)
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(span, SpanAttrStatus, "processing")
	RecordError(span, errors.New("conflict"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "fulfillment.accept", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, orderID.String(), attrs[SpanAttrOrderID].AsString())
	assert.Equal(t, int64(2), attrs["attempt"].AsInt64())
	assert.Equal(t, "processing", attrs[SpanAttrStatus].AsString())

	assert.Empty(t, TraceID(context.Background()))
}

type fakeOutboxStats struct {
	counts map[shared.OutboxStatus]int64
	calls  int32
}

func (f *fakeOutboxStats) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.counts, nil
}

func TestWorkflowMetrics(t *testing.T) {
	reader, mp := newTestMeter(t)
	m, err := NewWorkflowMetrics(mp.Meter("test"), zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	m.Committed(ctx, "accept", 2)
	m.Committed(ctx, "approve", 3)
	m.Conflict(ctx, "accept")
	m.DispatchDegraded(ctx, "approve")
	m.OutboxDeadLettered(ctx, &shared.OutboxEntry{EventType: "OrderApproved"})

	rm := collect(t, reader)
	accept := AttrOperation.String("accept")
	assert.Equal(t, int64(2), sum(rm, "editdesk_workflow_commits_total", nil))
	assert.Equal(t, int64(5), sum(rm, "editdesk_workflow_events_total", nil))
	assert.Equal(t, int64(2), sum(rm, "editdesk_workflow_events_total", &accept))
	assert.Equal(t, int64(1), sum(rm, "editdesk_workflow_conflicts_total", &accept))
	assert.Equal(t, int64(1), sum(rm, "editdesk_dispatch_degraded_total", nil))
	assert.Equal(t, int64(1), sum(rm, "editdesk_outbox_dead_letters_total", nil))
}

func TestWorkflowMetrics_ConsumerDeliveries(t *testing.T) {
	reader, mp := newTestMeter(t)
	m, err := NewWorkflowMetrics(mp.Meter("test"), zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	m.ConsumerDelivery(ctx, "invoicing", "OrderApproved", event.DeliveryHandled)
	m.ConsumerDelivery(ctx, "invoicing", "OrderApproved", event.DeliveryDuplicate)
	m.ConsumerDelivery(ctx, "activity", "OrderApproved", event.DeliveryDuplicate)

	rm := collect(t, reader)
	duplicate := AttrOutcome.String(string(event.DeliveryDuplicate))
	invoicing := AttrConsumer.String("invoicing")
	assert.Equal(t, int64(3), sum(rm, "editdesk_consumer_deliveries_total", nil))
	assert.Equal(t, int64(2), sum(rm, "editdesk_consumer_deliveries_total", &duplicate))
	assert.Equal(t, int64(2), sum(rm, "editdesk_consumer_deliveries_total", &invoicing))
}

func TestWorkflowMetrics_BacklogSampling(t *testing.T) {
	reader, mp := newTestMeter(t)
	m, err := NewWorkflowMetrics(mp.Meter("test"), nil)
	require.NoError(t, err)

	stats := &fakeOutboxStats{counts: map[shared.OutboxStatus]int64{
		shared.OutboxStatusPending: 4,
		shared.OutboxStatusDead:    1,
	}}
	m.StartBacklogSampling(context.Background(), stats, time.Hour)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&stats.calls) > 0 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	rm := collect(t, reader)
	pending, ok := gaugeValue(rm, "editdesk_outbox_entries", AttrStatus.String("PENDING"))
	require.True(t, ok)
	assert.Equal(t, int64(4), pending)
	failed, ok := gaugeValue(rm, "editdesk_outbox_entries", AttrStatus.String("FAILED"))
	require.True(t, ok)
	assert.Equal(t, int64(0), failed)
}

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestInstrumentDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	reader, mp := newTestMeter(t)
	stop, err := InstrumentDB(db, mp.Meter("test"), DBConfig{Tracing: true, PoolInterval: time.Hour}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer stop()

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)
	var rows []widget
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM widgets").Error)

	rm := collect(t, reader)
	create := AttrDBOperation.String("create")
	query := AttrDBOperation.String("query")
	del := AttrDBOperation.String("delete")
	assert.Equal(t, int64(1), sum(rm, "db_query_total", &create))
	assert.Equal(t, int64(1), sum(rm, "db_query_total", &query))
	assert.Equal(t, int64(1), sum(rm, "db_query_total", &del))

	_, ok := gaugeValue(rm, "db_pool_connections", AttrDBState.String("idle"))
	assert.True(t, ok)
}

func TestSQLVerb(t *testing.T) {
	assert.Equal(t, "select", sqlVerb("  SELECT 1"))
	assert.Equal(t, "insert", sqlVerb("insert into x values (1)"))
	assert.Equal(t, "raw", sqlVerb("VACUUM"))
	assert.Equal(t, "raw", sqlVerb(""))
}
