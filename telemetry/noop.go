package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type noopLogger struct{}

// NewNoopLogger returns a Logger that discards everything. It is the
// default used whenever a component is constructed without an explicit
// logger option.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) Count(string, int64, ...any)      {}
func (noopMetrics) Duration(string, float64, ...any) {}

type noopSpan struct{}

func (noopSpan) End(...trace.SpanEndOption)              {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}
func (noopSpan) SetStatus(codes.Code, string)            {}

type noopTracer struct{}

// NewNoopTracer returns a Tracer whose spans are no-ops. Used as the
// default so components can be constructed and exercised in tests without
// standing up an otel SDK.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

// noopOtelTracer is kept for components that want a trace.Tracer directly
// (e.g. to pass to a library that expects one) without pulling in an SDK.
var noopOtelTracer = noop.NewTracerProvider().Tracer("goa.design/mini")
