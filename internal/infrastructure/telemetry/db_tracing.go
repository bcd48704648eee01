package telemetry

import (
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// DBTracingConfig configures InstrumentDB
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool          // bound variables in db.statement, dev only
	SlowQueryThreshold time.Duration // 200ms when zero
	DBSystem           string
}

// DBSystemFor maps a configured database driver to its semantic-convention name
func DBSystemFor(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}

// InstrumentDB gives every statement on db a client span through otelgorm and
// marks the spans of statements slower than the threshold.
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Debug("Database tracing disabled")
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaultSlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("otelgorm: %w", err)
	}
	if err := db.Use(&slowQueryPlugin{threshold: cfg.SlowQueryThreshold}); err != nil {
		return err
	}

	log.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))
	return nil
}

const startedAtKey = "vetpms:started_at"

// slowQueryPlugin times each statement. Its after hook runs ahead of
// otelgorm's, while the statement span is still current.
type slowQueryPlugin struct {
	threshold time.Duration
}

func (*slowQueryPlugin) Name() string { return "vetpms:slow_query" }

type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (p *slowQueryPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	stages := []struct {
		name          string
		before, after registrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:select")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update").Before("otel:after:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row").Before("otel:after:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw").Before("otel:after:raw")},
	}
	for _, s := range stages {
		if err := s.before.Register(p.Name()+":start_"+s.name, markStart); err != nil {
			return err
		}
		if err := s.after.Register(p.Name()+":check_"+s.name, p.check); err != nil {
			return err
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func (p *slowQueryPlugin) check(db *gorm.DB) {
	v, ok := db.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	started, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(started)
	if elapsed <= p.threshold || db.Statement.Context == nil {
		return
	}

	span := trace.SpanFromContext(db.Statement.Context)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
	)
	span.AddEvent("slow query", trace.WithAttributes(
		attribute.Int64("threshold_ms", p.threshold.Milliseconds()),
	))
}
