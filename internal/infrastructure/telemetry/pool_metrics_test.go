package telemetry_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

func gaugeFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "metric %s is not an int64 gauge", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range g.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	t.Fatalf("no data point for %v", attrs)
	return 0
}

func TestRegisterPoolMetrics(t *testing.T) {
	reader, mp := newManualMeter(t)
	stats := sql.DBStats{MaxOpenConnections: 25, InUse: 3, Idle: 7, WaitCount: 4}

	reg, err := telemetry.RegisterPoolMetrics(mp.Meter("db"), func() (sql.DBStats, error) {
		return stats, nil
	})
	require.NoError(t, err)

	metrics := collect(t, reader)
	assert.Equal(t, int64(3), gaugeFor(t, metrics["db.pool.connections"], telemetry.AttrPoolState.String("in_use")))
	assert.Equal(t, int64(7), gaugeFor(t, metrics["db.pool.connections"], telemetry.AttrPoolState.String("idle")))
	assert.Equal(t, int64(25), gaugeFor(t, metrics["db.pool.max_open"]))
	assert.Equal(t, int64(4), sumFor(t, metrics["db.pool.wait_count"]))

	require.NoError(t, reg.Unregister())
	metrics = collect(t, reader)
	_, ok := metrics["db.pool.connections"]
	assert.False(t, ok)
}

func TestRegisterPoolMetrics_StatsError(t *testing.T) {
	reader, mp := newManualMeter(t)
	_, err := telemetry.RegisterPoolMetrics(mp.Meter("db"), func() (sql.DBStats, error) {
		return sql.DBStats{}, errors.New("pool closed")
	})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	assert.ErrorContains(t, reader.Collect(context.Background(), &rm), "pool closed")
}
