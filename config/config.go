// Package config holds the functional-options configuration shared by the
// sendto, hither, guard, and driver packages. There is deliberately no file
// or environment-variable loading here — configuration is constructed in
// Go by the embedding application, per the fabric's non-goals.
package config

import (
	"time"

	"goa.design/mini/telemetry"
)

// ErrorPolicy controls what a component does with a shutdown-path timeout
// (a SendTo trailing-drain timeout in Channel.Close, a log-stream shutdown
// timeout in Run.Stop).
type ErrorPolicy int

const (
	// ErrLog logs the error via the configured Logger and continues.
	ErrLog ErrorPolicy = iota
	// ErrThrow returns the error to the caller of Close/Stop.
	ErrThrow
)

// Options collects the ambient configuration threaded through the fabric.
// Zero value is not meant to be used directly; construct via New.
type Options struct {
	// ShutdownTimeout bounds how long a run scope waits for the log-stream
	// task to drain once the remote app is asked to stop.
	ShutdownTimeout time.Duration

	// TrailingTimeout bounds how long a SendTo Channel.Close waits for the
	// consumer to finish its final drain of the default partition. Nil
	// means wait indefinitely for the consumer to finish.
	TrailingTimeout *time.Duration

	// Errors selects what components do with otherwise-unpropagatable
	// internal errors.
	Errors ErrorPolicy

	// RateLimit is the minimum interval between renderer redraws.
	RateLimit time.Duration

	// Logger, Metrics, and Tracer are the telemetry seams; all default to
	// no-ops so components work out of the box in tests.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	// Platform carries opaque, platform-specific passthrough options
	// (e.g. a Modal-style app name, image reference, or region) that the
	// fabric itself never interprets.
	Platform map[string]any
}

// Option configures an Options value.
type Option func(*Options)

// New builds an Options from defaults plus the given overrides.
func New(opts ...Option) *Options {
	trailing := 5 * time.Second
	o := &Options{
		ShutdownTimeout: 10 * time.Second,
		TrailingTimeout: &trailing,
		Errors:          ErrLog,
		RateLimit:       time.Second,
		Logger:          telemetry.NewNoopLogger(),
		Metrics:         telemetry.NewNoopMetrics(),
		Tracer:          telemetry.NewNoopTracer(),
		Platform:        map[string]any{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithShutdownTimeout overrides the default 10s shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) { o.ShutdownTimeout = d }
}

// WithTrailingTimeout overrides the default 5s trailing-drain timeout. Pass
// nil to wait indefinitely for the queue to drain.
func WithTrailingTimeout(d *time.Duration) Option {
	return func(o *Options) { o.TrailingTimeout = d }
}

// WithErrorPolicy overrides the default ErrLog policy.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *Options) { o.Errors = p }
}

// WithRateLimit overrides the default 1s renderer rate limit.
func WithRateLimit(d time.Duration) Option {
	return func(o *Options) { o.RateLimit = d }
}

// WithLogger overrides the default no-op Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics overrides the default no-op Metrics.
func WithMetrics(m telemetry.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithTracer overrides the default no-op Tracer.
func WithTracer(tr telemetry.Tracer) Option {
	return func(o *Options) { o.Tracer = tr }
}

// WithPlatformOption sets a single opaque platform passthrough option.
func WithPlatformOption(key string, value any) Option {
	return func(o *Options) {
		if o.Platform == nil {
			o.Platform = map[string]any{}
		}
		o.Platform[key] = value
	}
}
