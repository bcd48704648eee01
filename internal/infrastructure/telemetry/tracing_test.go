package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "allocation.preview",
		telemetry.SpanAttrAllocationMode, "preview",
		telemetry.SpanAttrDebitCount, 2,
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "allocation.preview", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)

	v, ok := attrValue(spans[0].Attributes(), telemetry.SpanAttrAllocationMode)
	require.True(t, ok)
	assert.Equal(t, "preview", v.AsString())
	v, ok = attrValue(spans[0].Attributes(), telemetry.SpanAttrDebitCount)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
}

func TestStartSpan_ChildSharesTrace(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "customer_balance.rebalance")
	_, child := telemetry.StartServiceSpan(ctx, "allocation", "allocate_credit")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "allocation", "allocate_credit")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "allocation.allocate_credit", spans[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	creditID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "allocation.allocate_credit")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreditID, creditID,
		telemetry.SpanAttrDebitCount, 3,
		telemetry.SpanAttrOverride, true,
		42, "ignored",
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, "12.50")
	span.End()

	attrs := sr.Ended()[0].Attributes()
	assert.Len(t, attrs, 4)

	v, _ := attrValue(attrs, telemetry.SpanAttrCreditID)
	assert.Equal(t, creditID.String(), v.AsString())
	v, _ = attrValue(attrs, telemetry.SpanAttrDebitCount)
	assert.Equal(t, int64(3), v.AsInt64())
	v, _ = attrValue(attrs, telemetry.SpanAttrOverride)
	assert.True(t, v.AsBool())
	v, _ = attrValue(attrs, telemetry.SpanAttrAmount)
	assert.Equal(t, "12.50", v.AsString())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "allocation.allocate_credit")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "allocation.allocate_credit")
	telemetry.AddEvent(span, "allocation_blocked", telemetry.SpanAttrDebitCount, 2)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "allocation_blocked", events[0].Name)
	v, ok := attrValue(events[0].Attributes, telemetry.SpanAttrDebitCount)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
}

func TestNilSpanIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "e")
	})
}
