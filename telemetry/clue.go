package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// clueLogger delegates to goa.design/clue/log. It reads formatting and
// debug settings from the context, set via log.Context and
// log.WithFormat/log.WithDebug before the fabric is started.
type clueLogger struct{}

// FromClue constructs a Logger that delegates to goa.design/clue/log,
// for production wiring against clue's context-carried logger instead of
// the no-op default.
func FromClue() Logger { return clueLogger{} }

func (clueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fieldsOf(msg, keyvals)...)
}

func (clueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fieldsOf(msg, keyvals)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fields := append(fieldsOf(msg, keyvals), log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fields...)
}

func (clueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fieldsOf(msg, keyvals)...)
}

func fieldsOf(msg string, keyvals []any) []log.Fielder {
	fields := []log.Fielder{log.KV{K: "msg", V: msg}}
	return append(fields, kvToClue(keyvals)...)
}

// kvToClue converts alternating key-value pairs into clue's Fielder slice.
// A non-string key drops that pair; a trailing unpaired key is paired with
// nil.
func kvToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: k, V: v})
	}
	return fielders
}

// clueMetrics delegates to the global OTEL MeterProvider, configured via
// clue.ConfigureOpenTelemetry before the fabric is started.
type clueMetrics struct {
	meter metric.Meter
}

// NewClueMetrics constructs a Metrics recorder backed by OTEL metrics.
func NewClueMetrics() Metrics {
	return &clueMetrics{meter: otel.Meter("goa.design/mini")}
}

func (m *clueMetrics) Count(name string, value int64, keyvals ...any) {
	counter, err := m.meter.Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(kvToAttrs(keyvals)...))
}

func (m *clueMetrics) Duration(name string, d float64, keyvals ...any) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), d, metric.WithAttributes(kvToAttrs(keyvals)...))
}

// clueTracer delegates to the global OTEL TracerProvider, configured via
// clue.ConfigureOpenTelemetry or the OTEL_EXPORTER_OTLP_ENDPOINT family of
// environment variables.
type clueTracer struct {
	tracer trace.Tracer
}

// NewClueTracer constructs a Tracer backed by OTEL tracing.
func NewClueTracer() Tracer {
	return &clueTracer{tracer: otel.Tracer("goa.design/mini")}
}

func (t *clueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, span
}

func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, ""))
		}
	}
	return attrs
}
