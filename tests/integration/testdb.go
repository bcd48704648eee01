// Package integration runs the account services against a real PostgreSQL
// database started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vetpms/backend/internal/infrastructure/config"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/migration"
	"github.com/vetpms/backend/internal/infrastructure/persistence"
)

const (
	pgImage    = "postgres:16-alpine"
	pgDatabase = "vetpms_test"
	pgUser     = "vetpms"
	pgPassword = "vetpms-test"
)

// one container per package run; tests isolate themselves with fresh customer ids
var shared struct {
	sync.Mutex
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

// TestDB is a connection to the migrated shared database
type TestDB struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Config config.DatabaseConfig
}

// NewTestDB connects to the shared container, starting and migrating it on
// first use. Set TEST_DB_DEBUG to log every statement.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	cfg := sharedDatabase(t)

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.NewDatabase(&cfg,
		persistence.WithGormLogger(logger.NewGormLogger(zaptest.NewLogger(t), level)))
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	return &TestDB{DB: db.DB, SqlDB: sqlDB, Config: cfg}
}

func sharedDatabase(t *testing.T) config.DatabaseConfig {
	t.Helper()
	shared.Lock()
	defer shared.Unlock()
	if shared.container != nil {
		return shared.cfg
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, pgImage,
		tcpostgres.WithDatabase(pgDatabase),
		tcpostgres.WithUsername(pgUser),
		tcpostgres.WithPassword(pgPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:          "postgres",
		Host:            host,
		Port:            port.Int(),
		User:            pgUser,
		Password:        pgPassword,
		DBName:          pgDatabase,
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 5,
	}
	migrate(t, cfg)

	shared.container, shared.cfg = container, cfg
	return cfg
}

// migrate applies the embedded migrations the way cmd/migrate up does
func migrate(t *testing.T, cfg config.DatabaseConfig) {
	t.Helper()
	db, err := persistence.NewDatabase(&cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err, "create migrator")
	defer func() { _ = m.Close() }()
	require.NoError(t, m.Up(), "apply migrations")
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	shared.Lock()
	defer shared.Unlock()
	if shared.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = shared.container.Terminate(ctx)
	shared.container = nil
}
