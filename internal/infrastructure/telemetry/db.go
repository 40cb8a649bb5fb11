package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation
type DBConfig struct {
	Tracing         bool
	FullSQL         bool
	SlowQueryThresh time.Duration
	PoolInterval    time.Duration
}

// InstrumentDB registers otelgorm tracing when enabled and query metrics on
// db. Call the returned stop function on shutdown.
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.PoolInterval <= 0 {
		cfg.PoolInterval = 15 * time.Second
	}

	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !cfg.FullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	metrics, err := newDBMetrics(meter, cfg.SlowQueryThresh)
	if err != nil {
		return nil, err
	}
	if err := metrics.register(db); err != nil {
		return nil, err
	}

	stop := func() {}
	if sqlDB, err := db.DB(); err == nil {
		stop = metrics.collectPool(sqlDB, cfg.PoolInterval)
	}
	logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", cfg.Tracing),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return stop, nil
}

type dbMetrics struct {
	queries   *Counter
	slow      *Counter
	duration  *Histogram
	pool      *Gauge
	threshold time.Duration
}

func newDBMetrics(meter metric.Meter, threshold time.Duration) (*dbMetrics, error) {
	m := &dbMetrics{threshold: threshold}
	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slow, err = NewCounter(meter, "db_slow_query_total", "Database queries slower than the threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, "db_query_duration_seconds", "Database query latency", "s", DBDurationBuckets); err != nil {
		return nil, err
	}
	if m.pool, err = NewGauge(meter, "db_pool_connections", "Connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

type queryStartKey struct{}

type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (m *dbMetrics) register(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after registrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	for _, h := range hooks {
		if err := h.before.Register("metrics:before_"+h.op, m.before); err != nil {
			return err
		}
		if err := h.after.Register("metrics:after_"+h.op, m.after(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (m *dbMetrics) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (m *dbMetrics) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		if op == "raw" || op == "row" {
			op = sqlVerb(db.Statement.SQL.String())
		}
		elapsed := time.Since(start)
		attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table)}
		m.queries.Inc(ctx, attrs...)
		m.duration.RecordDuration(ctx, elapsed, attrs...)
		if elapsed > m.threshold {
			m.slow.Inc(ctx, attrs...)
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.Bool("db.slow_query", true))
			}
		}
	}
}

// sqlVerb is the lower-cased first keyword of a statement
func sqlVerb(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "raw"
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "select", "insert", "update", "delete":
		return verb
	default:
		return "raw"
	}
}

func (m *dbMetrics) collectPool(sqlDB *sql.DB, interval time.Duration) func() {
	done := make(chan struct{})
	var once sync.Once
	m.recordPool(context.Background(), sqlDB.Stats())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.recordPool(context.Background(), sqlDB.Stats())
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (m *dbMetrics) recordPool(ctx context.Context, stats sql.DBStats) {
	m.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.pool.Record(ctx, int64(stats.MaxOpenConnections), AttrDBState.String("max"))
}
