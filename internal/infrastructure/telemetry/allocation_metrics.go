package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Allocation modes and outcomes reported on allocation metrics.
const (
	ModeDefault   = "default"
	ModeExplicit  = "explicit"
	ModePreview   = "preview"
	ModeRebalance = "rebalance"

	OutcomeAllocated = "allocated"
	OutcomeNoop      = "noop"
	OutcomeBlocked   = "blocked"
	OutcomeError     = "error"
)

// AllocationMetrics holds the instruments the allocation services report to.
type AllocationMetrics struct {
	allocations *Counter
	blocked     *Counter
	retries     *Counter
	duration    *Histogram
}

// NewAllocationMetrics registers the allocation instruments on meter.
func NewAllocationMetrics(meter metric.Meter) (*AllocationMetrics, error) {
	allocations, err := NewCounter(meter, "allocation.operations", "Allocation runs by mode and outcome", "{operation}")
	if err != nil {
		return nil, err
	}
	blocked, err := NewCounter(meter, "allocation.blocked_debits", "Debits skipped because an active gap claim covers them", "{debit}")
	if err != nil {
		return nil, err
	}
	retries, err := NewCounter(meter, "allocation.retries", "Allocation retries after a concurrent modification", "{retry}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "allocation.duration",
		Description: "Allocation run duration",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &AllocationMetrics{
		allocations: allocations,
		blocked:     blocked,
		retries:     retries,
		duration:    duration,
	}, nil
}

// RecordRun records one allocation run. A nil receiver is a no-op.
func (m *AllocationMetrics) RecordRun(ctx context.Context, mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.allocations.Inc(ctx, AttrAllocationMode.String(mode), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrAllocationMode.String(mode))
}

// RecordBlocked records debits skipped by the gap-claim check.
func (m *AllocationMetrics) RecordBlocked(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.blocked.Add(ctx, int64(n))
}

// RecordRetry records a retry after a version conflict.
func (m *AllocationMetrics) RecordRetry(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.retries.Inc(ctx, AttrAllocationMode.String(mode))
}
