package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Field names set by the context helpers
const (
	FieldRequestID  = "request_id"
	FieldCustomerID = "customer_id"
	FieldJob        = "job"
)

type (
	loggerKey struct{}
	fieldsKey struct{}
)

// WithContext stores l in ctx for FromContext and L
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithFields returns ctx carrying fields for every logger derived through L
// or For. A field replaces an earlier one with the same key.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	prev := contextFields(ctx)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	for _, f := range prev {
		if !hasKey(fields, f.Key) {
			merged = append(merged, f)
		}
	}
	return context.WithValue(ctx, fieldsKey{}, append(merged, fields...))
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, zap.String(FieldRequestID, id))
}

// WithCustomerID marks ctx as working on one customer's account
func WithCustomerID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, zap.String(FieldCustomerID, id))
}

// WithJob names the background job running under ctx
func WithJob(ctx context.Context, name string) context.Context {
	return WithFields(ctx, zap.String(FieldJob, name))
}

// GetRequestID returns the request id carried by ctx, if any
func GetRequestID(ctx context.Context) string {
	for _, f := range contextFields(ctx) {
		if f.Key == FieldRequestID {
			return f.String
		}
	}
	return ""
}

// L is For(ctx, FromContext(ctx)).
//
//	logger.L(ctx).Info("credit allocated", zap.String("credit_id", id))
func L(ctx context.Context) *zap.Logger {
	return For(ctx, FromContext(ctx))
}

// For returns base with the trace ids and the fields carried by ctx
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	fields := contextFields(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append([]zap.Field{
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		}, fields...)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func contextFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(fieldsKey{}).([]zap.Field)
	return fields
}

func hasKey(fields []zap.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
