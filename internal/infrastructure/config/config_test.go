package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the tests touch. Viper treats empty
// variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VETPMS_APP_NAME", "VETPMS_APP_ENV", "VETPMS_APP_PORT",
		"VETPMS_DATABASE_DRIVER", "VETPMS_DATABASE_HOST", "VETPMS_DATABASE_PORT",
		"VETPMS_DATABASE_PASSWORD", "VETPMS_DATABASE_SSLMODE",
		"VETPMS_DATABASE_MAX_OPEN_CONNS", "VETPMS_DATABASE_MAX_IDLE_CONNS",
		"VETPMS_ACCOUNT_CURRENCY", "VETPMS_ACCOUNT_MAX_RETRIES", "VETPMS_ACCOUNT_LOCK_BACKEND",
		"VETPMS_ACCOUNT_LOCK_TTL", "VETPMS_ACCOUNT_SWEEP_SCHEDULE",
		"VETPMS_TELEMETRY_SAMPLING_RATIO", "VETPMS_TELEMETRY_DB_LOG_FULL_SQL",
		"VETPMS_HTTP_CORS_ALLOW_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "vetpms-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "vetpms", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, "AUD", cfg.Account.Currency)
		assert.Equal(t, 3, cfg.Account.MaxRetries)
		assert.Equal(t, "memory", cfg.Account.LockBackend)
		assert.Equal(t, 30*time.Second, cfg.Account.LockTTL)
		assert.Equal(t, 30, cfg.Account.PaymentTermsDays)
		assert.Equal(t, 5*time.Second, cfg.Account.LookupTimeout)
		assert.Equal(t, "@every 15m", cfg.Account.SweepSchedule)
		assert.Equal(t, 100, cfg.Account.SweepBatchSize)
		assert.Equal(t, "oldest_first", cfg.Account.AllocationStrategy)
		assert.False(t, cfg.Account.SweepEnabled)
	})

	t.Run("loads values from environment variables with VETPMS prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_APP_PORT", "9000")
		t.Setenv("VETPMS_DATABASE_HOST", "db.local")
		t.Setenv("VETPMS_DATABASE_PORT", "5433")
		t.Setenv("VETPMS_ACCOUNT_CURRENCY", "nzd")
		t.Setenv("VETPMS_ACCOUNT_MAX_RETRIES", "5")
		t.Setenv("VETPMS_ACCOUNT_LOCK_BACKEND", "redis")
		t.Setenv("VETPMS_ACCOUNT_LOCK_TTL", "1m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "nzd", cfg.Account.Currency)
		assert.Equal(t, 5, cfg.Account.MaxRetries)
		assert.Equal(t, "redis", cfg.Account.LockBackend)
		assert.Equal(t, time.Minute, cfg.Account.LockTTL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("VETPMS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unsupported currency", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_ACCOUNT_CURRENCY", "XXX")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account.currency")
	})

	t.Run("rejects unknown lock backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_ACCOUNT_LOCK_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account.lock_backend")
	})

	t.Run("keeps an explicit zero sampling ratio", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_TELEMETRY_SAMPLING_RATIO", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Zero(t, cfg.Telemetry.SamplingRatio)
	})

	t.Run("splits list variables on commas", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_HTTP_CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowOrigins)
		assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.HTTP.CORSAllowMethods)
	})

	t.Run("reports every invalid setting", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_DATABASE_DRIVER", "mysql")
		t.Setenv("VETPMS_ACCOUNT_MAX_RETRIES", "0")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
		assert.Contains(t, err.Error(), "account.max_retries")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_APP_ENV", "production")
		t.Setenv("VETPMS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("VETPMS_DATABASE_SSLMODE", "require")
		t.Setenv("VETPMS_ACCOUNT_LOCK_BACKEND", "redis")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("VETPMS_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("VETPMS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires redis locks in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("VETPMS_ACCOUNT_LOCK_BACKEND", "memory")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lock_backend")
	})

	t.Run("forbids wildcard CORS in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("VETPMS_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("forbids full SQL in traces in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("VETPMS_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestLoadFrom(t *testing.T) {
	t.Run("reads an explicit TOML file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "vetpms.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[database]
driver = "sqlite"
sqlite_path = ":memory:"

[account]
currency = "USD"
payment_terms_days = 14
sweep_enabled = true
sweep_schedule = "@every 1h"
`), 0o600))

		cfg, err := LoadFrom(path)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.SQLitePath)
		assert.Equal(t, "USD", cfg.Account.Currency)
		assert.Equal(t, 14, cfg.Account.PaymentTermsDays)
		assert.True(t, cfg.Account.SweepEnabled)
		assert.Equal(t, "@every 1h", cfg.Account.SweepSchedule)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VETPMS_ACCOUNT_CURRENCY", "GBP")
		path := filepath.Join(t.TempDir(), "vetpms.toml")
		require.NoError(t, os.WriteFile(path, []byte("[account]\ncurrency = \"USD\"\n"), 0o600))

		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "GBP", cfg.Account.Currency)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "user", Password: "pass@word#123", DBName: "db", SSLMode: "disable"}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
	assert.Equal(t, "[::1]:6379", RedisConfig{Host: "::1", Port: 6379}.Addr())
}
