package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appaccount "github.com/vetpms/backend/internal/application/account"
	"github.com/vetpms/backend/internal/domain/shared"
)

const (
	defaultLockKeyPrefix     = "account:lock:"
	defaultLockTTL           = 30 * time.Second
	defaultLockRetryInterval = 50 * time.Millisecond
	defaultLockWait          = 5 * time.Second
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lease taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisCustomerLocker implements CustomerLocker with a Redis lease per
// customer. It serialises allocation across every process sharing the Redis.
type RedisCustomerLocker struct {
	client        *redis.Client
	ownsClient    bool // true if we created the client and should close it
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	wait          time.Duration
	logger        *zap.Logger
}

// LockerOption is a functional option shared by the customer lockers
type LockerOption func(*lockerOptions)

type lockerOptions struct {
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	wait          time.Duration
	logger        *zap.Logger
}

func defaultLockerOptions() lockerOptions {
	return lockerOptions{
		keyPrefix:     defaultLockKeyPrefix,
		ttl:           defaultLockTTL,
		retryInterval: defaultLockRetryInterval,
		wait:          defaultLockWait,
		logger:        zap.NewNop(),
	}
}

// WithLockTTL sets how long a Redis lease lives if it is never released
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(o *lockerOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLockWait bounds how long Lock waits for a busy customer when the
// context has no earlier deadline
func WithLockWait(wait time.Duration) LockerOption {
	return func(o *lockerOptions) {
		if wait > 0 {
			o.wait = wait
		}
	}
}

// WithLockRetryInterval sets the polling interval for a busy Redis lease
func WithLockRetryInterval(interval time.Duration) LockerOption {
	return func(o *lockerOptions) {
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

// WithLockKeyPrefix sets the Redis key prefix
func WithLockKeyPrefix(prefix string) LockerOption {
	return func(o *lockerOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithLockLogger sets the logger
func WithLockLogger(logger *zap.Logger) LockerOption {
	return func(o *lockerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewRedisCustomerLocker connects to Redis and creates a locker
func NewRedisCustomerLocker(cfg RedisConfig, opts ...LockerOption) (*RedisCustomerLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	l := NewRedisCustomerLockerWithClient(client, opts...)
	l.ownsClient = true
	return l, nil
}

// NewRedisCustomerLockerWithClient creates a locker over an existing client.
// The caller keeps ownership of the client.
func NewRedisCustomerLockerWithClient(client *redis.Client, opts ...LockerOption) *RedisCustomerLocker {
	o := defaultLockerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisCustomerLocker{
		client:        client,
		keyPrefix:     o.keyPrefix,
		ttl:           o.ttl,
		retryInterval: o.retryInterval,
		wait:          o.wait,
		logger:        o.logger,
	}
}

func (l *RedisCustomerLocker) key(customerID uuid.UUID) string {
	return l.keyPrefix + customerID.String()
}

// Lock takes the customer's lease, polling until it is free or the wait runs
// out. A customer that stays busy is reported as ConcurrentModification and
// an unreachable Redis as LookupUnavailable.
func (l *RedisCustomerLocker) Lock(ctx context.Context, customerID uuid.UUID) (appaccount.Unlock, error) {
	key := l.key(customerID)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, shared.WrapDomainError(shared.CodeLookupUnavailable, "Customer lock store is unavailable", err)
		}
		if ok {
			return l.release(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, busyError(customerID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisCustomerLocker) release(key, token string) appaccount.Unlock {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release customer lock %s: %w", key, err)
		}
		if n == 0 {
			l.logger.Warn("Customer lock expired before release", zap.String("key", key))
		}
		return nil
	}
}

// Ping checks that the lock store answers
func (l *RedisCustomerLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client if the locker created it
func (l *RedisCustomerLocker) Close() error {
	if l.ownsClient {
		return l.client.Close()
	}
	return nil
}

func busyError(customerID uuid.UUID, cause error) error {
	return shared.WrapDomainError(shared.CodeConcurrentModification,
		fmt.Sprintf("Customer %s is being allocated by another request", customerID), cause)
}

var _ appaccount.CustomerLocker = (*RedisCustomerLocker)(nil)
