package cache

import (
	"fmt"

	"go.uber.org/zap"

	appaccount "github.com/vetpms/backend/internal/application/account"
)

// Lock backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// LockerFactory creates customer lockers based on configuration
type LockerFactory struct {
	redisConfig           RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	options               []LockerOption
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory and the lockers it creates
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// an in-memory locker. Default is false.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithLockerOptions passes options through to every locker created
func WithLockerOptions(opts ...LockerOption) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.options = append(f.options, opts...)
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the locker for backend and a function closing its resources.
// In-memory locks do not span processes, so a multi-instance deployment must
// use redis.
func (f *LockerFactory) Create(backend string) (appaccount.CustomerLocker, func() error, error) {
	opts := append([]LockerOption{WithLockLogger(f.logger)}, f.options...)
	switch backend {
	case "", BackendMemory:
		f.logger.Info("Using in-memory customer locker")
		return NewInMemoryCustomerLocker(opts...), func() error { return nil }, nil
	case BackendRedis:
		locker, err := NewRedisCustomerLocker(f.redisConfig, opts...)
		if err == nil {
			f.logger.Info("Using Redis customer locker",
				zap.String("host", f.redisConfig.Host),
				zap.Int("port", f.redisConfig.Port),
			)
			return locker, locker.Close, nil
		}
		if !f.allowInMemoryFallback {
			return nil, nil, fmt.Errorf("failed to create Redis customer locker: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory customer locker", zap.Error(err))
		return NewInMemoryCustomerLocker(opts...), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", backend)
}
