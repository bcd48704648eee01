package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestCounterAndHistogram(t *testing.T) {
	reader, mp := newManualMeter(t)
	meter := mp.Meter("test")
	ctx := context.Background()

	c, err := telemetry.NewCounter(meter, "test.counter", "a counter", "{item}")
	require.NoError(t, err)
	c.Inc(ctx, telemetry.AttrOutcome.String("ok"))
	c.Add(ctx, 4, telemetry.AttrOutcome.String("ok"))

	h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "test.duration",
		Unit:       "s",
		Boundaries: telemetry.DurationBuckets,
	})
	require.NoError(t, err)
	h.RecordDuration(ctx, 20*time.Millisecond)
	h.Record(ctx, 0.5)

	metrics := collect(t, reader)
	assert.Equal(t, int64(5), sumFor(t, metrics["test.counter"], telemetry.AttrOutcome.String("ok")))

	hist, ok := metrics["test.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, telemetry.DurationBuckets, hist.DataPoints[0].Bounds)
}

func TestAllocationMetrics(t *testing.T) {
	reader, mp := newManualMeter(t)
	ctx := context.Background()

	m, err := telemetry.NewAllocationMetrics(mp.Meter("allocation"))
	require.NoError(t, err)

	m.RecordRun(ctx, telemetry.ModeDefault, telemetry.OutcomeAllocated, 10*time.Millisecond)
	m.RecordRun(ctx, telemetry.ModeDefault, telemetry.OutcomeAllocated, 15*time.Millisecond)
	m.RecordRun(ctx, telemetry.ModeExplicit, telemetry.OutcomeNoop, time.Millisecond)
	m.RecordBlocked(ctx, 2)
	m.RecordBlocked(ctx, 0)
	m.RecordRetry(ctx, telemetry.ModeDefault)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, metrics["allocation.operations"],
		telemetry.AttrAllocationMode.String(telemetry.ModeDefault),
		telemetry.AttrOutcome.String(telemetry.OutcomeAllocated)))
	assert.Equal(t, int64(1), sumFor(t, metrics["allocation.operations"],
		telemetry.AttrAllocationMode.String(telemetry.ModeExplicit),
		telemetry.AttrOutcome.String(telemetry.OutcomeNoop)))
	assert.Equal(t, int64(2), sumFor(t, metrics["allocation.blocked_debits"]))
	assert.Equal(t, int64(1), sumFor(t, metrics["allocation.retries"],
		telemetry.AttrAllocationMode.String(telemetry.ModeDefault)))

	hist, ok := metrics["allocation.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestAllocationMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.AllocationMetrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), telemetry.ModeDefault, telemetry.OutcomeError, time.Second)
		m.RecordBlocked(context.Background(), 1)
		m.RecordRetry(context.Background(), telemetry.ModeDefault)
	})
}
