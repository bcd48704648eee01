// Package bootstrap builds the services shared by the HTTP server and the
// operator CLI from one loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appaccount "github.com/vetpms/backend/internal/application/account"
	"github.com/vetpms/backend/internal/domain/shared/valueobject"
	"github.com/vetpms/backend/internal/infrastructure/cache"
	"github.com/vetpms/backend/internal/infrastructure/config"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/persistence"
	"github.com/vetpms/backend/internal/infrastructure/strategy"
	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// MeterName is the instrumentation scope of the service's own metrics
const MeterName = "github.com/vetpms/backend"

// Container holds the wired services and the resources behind them
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *persistence.Database
	Locker     appaccount.CustomerLocker
	Meter      metric.Meter
	Allocation *appaccount.AllocationService
	Balances   *appaccount.CustomerBalanceService
	Sweep      *appaccount.UnallocatedCreditSweep

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func(ctx context.Context) error
}

// Option configures New
type Option func(*options)

type options struct {
	logger      *zap.Logger
	autoMigrate bool
}

// WithLogger uses log instead of building one from the configuration.
// The OTLP log bridge is skipped in that case.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithAutoMigrate creates the tables from the gorm models on startup.
// sqlite databases are always auto-migrated.
func WithAutoMigrate(enabled bool) Option {
	return func(o *options) {
		o.autoMigrate = enabled
	}
}

// New wires logging, telemetry, the database, the customer locker and the
// account services. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (c *Container, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c = &Container{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	if err = c.initLogger(ctx, o); err != nil {
		return c, err
	}
	if err = c.initTelemetry(ctx); err != nil {
		return c, err
	}
	if err = c.initDatabase(o); err != nil {
		return c, err
	}
	if err = c.initLocker(); err != nil {
		return c, err
	}
	if err = c.initServices(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Container) initLogger(ctx context.Context, o *options) error {
	if o.logger != nil {
		c.Logger = o.logger
		return nil
	}

	logCfg := &logger.Config{
		Level:  c.Config.Log.Level,
		Format: c.Config.Log.Format,
		Output: c.Config.Log.Output,
	}
	core, err := logger.NewCore(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	base := zap.New(core, logger.Options()...)
	c.Logger = base

	tel := c.Config.Telemetry
	if !tel.LogExportEnabled {
		return nil
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Exporter: exporterFor(tel),
		Enabled:  true,
	}, base)
	if err != nil {
		return err
	}
	c.onClose("log exporter", lp.Shutdown)

	exported := lp.ZapCore(tel.ServiceName, logger.ParseLevel(tel.LogExportLevel))
	c.Logger = zap.New(zapcore.NewTee(core, exported), logger.Options()...)
	return nil
}

func exporterFor(tel config.TelemetryConfig) telemetry.Exporter {
	return telemetry.Exporter{
		CollectorEndpoint: tel.CollectorEndpoint,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}
}

func (c *Container) initTelemetry(ctx context.Context) error {
	tel := c.Config.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Exporter:      exporterFor(tel),
		Enabled:       tel.Enabled,
		SamplingRatio: tel.SamplingRatio,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.onClose("tracer provider", tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Exporter:       exporterFor(tel),
		Enabled:        tel.MetricsEnabled,
		ExportInterval: tel.MetricsInterval,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.onClose("meter provider", mp.Shutdown)

	if mp.IsEnabled() {
		c.Meter = mp.Meter(MeterName)
	} else {
		c.Meter = otel.GetMeterProvider().Meter(MeterName)
	}
	return nil
}

func (c *Container) initDatabase(o *options) error {
	dbCfg := &c.Config.Database
	gormLogger := logger.NewGormLogger(c.Logger, logger.MapGormLogLevel(c.Config.Log.Level))

	db, err := persistence.NewDatabase(dbCfg, persistence.WithGormLogger(gormLogger))
	if err != nil {
		return err
	}
	c.DB = db
	c.onClose("database", func(context.Context) error { return db.Close() })

	err = telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
		Enabled:    c.Config.Telemetry.DBTraceEnabled,
		LogFullSQL: c.Config.Telemetry.DBLogFullSQL,
		DBSystem:   telemetry.DBSystemFor(dbCfg.Driver),
	}, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	pool, err := telemetry.RegisterPoolMetrics(c.Meter, db.Stats)
	if err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	c.onClose("pool metrics", func(context.Context) error { return pool.Unregister() })

	if o.autoMigrate || dbCfg.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
	}

	c.Logger.Info("Database connected",
		zap.String("driver", dbCfg.Driver),
		zap.String("host", dbCfg.Host),
		zap.String("database", dbCfg.DBName),
	)
	return nil
}

func (c *Container) initLocker() error {
	factory := cache.NewLockerFactory(
		cache.RedisConfig{
			Host:     c.Config.Redis.Host,
			Port:     c.Config.Redis.Port,
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		},
		cache.WithLogger(c.Logger),
		cache.WithInMemoryFallback(!c.Config.App.IsProduction()),
		cache.WithLockerOptions(cache.WithLockTTL(c.Config.Account.LockTTL)),
	)
	locker, closeFn, err := factory.Create(c.Config.Account.LockBackend)
	if err != nil {
		return err
	}
	c.Locker = locker
	c.onClose("customer locker", func(context.Context) error { return closeFn() })
	return nil
}

func (c *Container) initServices() error {
	currency, err := valueobject.NewCurrency(c.Config.Account.Currency)
	if err != nil {
		return fmt.Errorf("account.currency: %w", err)
	}

	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		return err
	}
	order, err := registry.GetAllocationStrategy(c.Config.Account.AllocationStrategy)
	if err != nil {
		return fmt.Errorf("account.allocation_strategy: %w", err)
	}

	metrics, err := telemetry.NewAllocationMetrics(c.Meter)
	if err != nil {
		return fmt.Errorf("failed to create allocation metrics: %w", err)
	}

	acts := persistence.NewGormFinancialActRepository(c.DB.DB)
	c.Allocation = appaccount.NewAllocationService(
		persistence.NewGormTransactionScope(c.DB.DB),
		c.Locker,
		appaccount.AllocationConfig{
			Currency:      currency,
			MaxRetries:    c.Config.Account.MaxRetries,
			LookupTimeout: c.Config.Account.LookupTimeout,
		},
		appaccount.WithAllocationMetrics(metrics),
		appaccount.WithDefaultAllocationStrategy(order),
	)
	c.Balances = appaccount.NewCustomerBalanceService(acts, c.Allocation, c.Config.Account.PaymentTermsDays)
	c.Sweep = appaccount.NewUnallocatedCreditSweep(acts, c.Balances, c.Config.Account.SweepBatchSize)
	return nil
}

// PingDatabase checks the database connection
func (c *Container) PingDatabase(ctx context.Context) error {
	return c.DB.Ping(ctx)
}

// PingLocker checks the lock store. Lockers without a remote store always pass.
func (c *Container) PingLocker(ctx context.Context) error {
	if p, ok := c.Locker.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Container) onClose(name string, fn func(ctx context.Context) error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// Close releases resources in the reverse order they were opened. Telemetry
// providers are flushed last so shutdown logs and spans still export.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}
