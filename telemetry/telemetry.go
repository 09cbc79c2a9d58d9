// Package telemetry defines the logging, metrics, and tracing seams used
// throughout the fabric. Components never call a concrete logging or
// tracing library directly; they take a Logger/Metrics/Tracer at
// construction time, defaulting to the no-op implementations in noop.go.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is a structured, leveled logger. Key-value pairs follow the same
// alternating-arguments convention as goa.design/clue/log.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics records counters and durations for fabric operations. Labels are
// passed as alternating key-value pairs, mirroring Logger.
type Metrics interface {
	Count(name string, value int64, keyvals ...any)
	Duration(name string, d float64, keyvals ...any)
}

// Tracer starts spans. Its signature mirrors
// go.opentelemetry.io/otel/trace.Tracer.Start, so an otel Tracer can be
// adapted to it with a one-line wrapper (see OtelTracer below).
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is the subset of trace.Span the fabric needs.
type Span interface {
	End(options ...trace.SpanEndOption)
	RecordError(err error, options ...trace.EventOption)
	SetStatus(code codes.Code, description string)
}

// OtelTracer adapts an otel trace.Tracer to the Tracer interface above;
// trace.Span already satisfies Span directly.
type OtelTracer struct {
	trace.Tracer
}

func (t OtelTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.Tracer.Start(ctx, spanName, opts...)
	return ctx, span
}
