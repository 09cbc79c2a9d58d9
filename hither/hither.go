// Package hither implements the local-callback dispatcher (§4.D): a
// callback that must always run in the driving process, never inside a
// remote worker, gets wrapped into a producer/consumer pair over
// goa.design/mini/sendto. Calling the returned stub from a remote worker
// just enqueues the call and returns immediately.
//
// Unlike the source this package was distilled from, callback shape is
// never detected at runtime via reflection: each of the four supported
// shapes (bare, factory, scoped resource, scoped-resource factory) has its
// own constructor, so the shape is known statically at the call site.
package hither

import (
	"context"
	"fmt"

	"goa.design/mini/config"
	"goa.design/mini/sendto"
)

// Callback processes one value at a time.
type Callback[T any] func(ctx context.Context, value T) error

// BatchCallback processes a batch of values in one call. Batches may
// contain more than one item depending on how quickly the consumer drains
// the underlying queue relative to producers.
type BatchCallback[T any] func(ctx context.Context, values []T) error

// Scope is the scoped-resource contract: Open acquires whatever the
// callback needs (a file handle, a model checkpoint, a plotting context)
// and returns the callback bound to it; Close releases it. Run calls Close
// once the context passed to Run is done, and also when Open panics. Close
// is not called when Open returns an error.
type Scope[T any] interface {
	Open(ctx context.Context) (BatchCallback[T], error)
	Close(ctx context.Context) error
}

// Shape tags which of the four supported callback forms a Hither wraps.
// It exists so Close/logging can report the shape without type-asserting
// the stored value.
type Shape int

const (
	// ShapeBare wraps a single ready-to-call BatchCallback.
	ShapeBare Shape = iota
	// ShapeFactory wraps a function that produces a BatchCallback when
	// called — invoked by Run, once per Run call, before Run returns.
	ShapeFactory
	// ShapeScoped wraps a Scope whose Open/Close bracket the callback's
	// lifetime.
	ShapeScoped
	// ShapeScopedFactory wraps a function that produces a Scope when
	// called.
	ShapeScopedFactory
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeFactory:
		return "factory"
	case ShapeScoped:
		return "scoped"
	case ShapeScopedFactory:
		return "scoped-factory"
	default:
		return "unknown"
	}
}

// Hither wraps one local callback of a known Shape, ready to be Run.
type Hither[T any] struct {
	shape Shape

	bare     BatchCallback[T]
	factory  func() BatchCallback[T]
	scope    Scope[T]
	scopeFac func() Scope[T]
}

// Bare wraps a single unbatched callback: fn is invoked once per value
// sent to the stub.
func Bare[T any](fn Callback[T]) *Hither[T] {
	return &Hither[T]{
		shape: ShapeBare,
		bare: func(ctx context.Context, values []T) error {
			for _, v := range values {
				if err := fn(ctx, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// BatchBare wraps a batch callback directly: fn is invoked once per batch
// drained from the queue.
func BatchBare[T any](fn BatchCallback[T]) *Hither[T] {
	return &Hither[T]{shape: ShapeBare, bare: fn}
}

// Factory wraps a function that builds the unbatched callback lazily, when
// Run is called (once per Run call).
func Factory[T any](build func() Callback[T]) *Hither[T] {
	return &Hither[T]{
		shape: ShapeFactory,
		factory: func() BatchCallback[T] {
			fn := build()
			return func(ctx context.Context, values []T) error {
				for _, v := range values {
					if err := fn(ctx, v); err != nil {
						return err
					}
				}
				return nil
			}
		},
	}
}

// BatchFactory wraps a function that builds the batch callback lazily.
func BatchFactory[T any](build func() BatchCallback[T]) *Hither[T] {
	return &Hither[T]{shape: ShapeFactory, factory: build}
}

// Scoped wraps a resource whose lifetime brackets the callback's lifetime:
// Open is called once when Run starts, Close once when Run's context ends.
func Scoped[T any](scope Scope[T]) *Hither[T] {
	return &Hither[T]{shape: ShapeScoped, scope: scope}
}

// ScopedFactory wraps a function that builds the Scope lazily, when Run is
// called (once per Run call).
func ScopedFactory[T any](build func() Scope[T]) *Hither[T] {
	return &Hither[T]{shape: ShapeScopedFactory, scopeFac: build}
}

// Shape reports which of the four callback forms h wraps.
func (h *Hither[T]) Shape() Shape { return h.shape }

// Run starts the consumer side of the callback: a sendto.Channel is opened
// with a batch receive function derived from h's shape, and the
// ProducerRef it returns is what remote workers (or local code) call to
// enqueue values. Run blocks acquiring any scoped resource before
// returning; releasing it is deferred to when ctx is done.
func Run[T any](ctx context.Context, h *Hither[T], queue sendto.Queue, opts *config.Options) (sendto.ProducerRef[T], error) {
	if opts == nil {
		opts = config.New()
	}

	receive, closeFn, err := h.resolve(ctx)
	if err != nil {
		var zero sendto.ProducerRef[T]
		return zero, fmt.Errorf("hither: resolve %s callback: %w", h.shape, err)
	}

	channel, producer := sendto.Open(ctx, queue, sendto.Receive[T](receive), opts)

	go func() {
		<-ctx.Done()
		_ = channel.Close(context.Background())
		if closeFn != nil {
			_ = closeFn(context.Background())
		}
	}()

	return producer, nil
}

// resolve materializes the concrete BatchCallback this Hither wraps,
// opening any scoped resource up front, and returns a closer that must run
// when the caller is done (a no-op for the non-scoped shapes).
func (h *Hither[T]) resolve(ctx context.Context) (BatchCallback[T], func(context.Context) error, error) {
	switch h.shape {
	case ShapeBare:
		return h.bare, nil, nil
	case ShapeFactory:
		return h.factory(), nil, nil
	case ShapeScoped:
		return openScope(ctx, h.scope)
	case ShapeScopedFactory:
		return openScope(ctx, h.scopeFac())
	default:
		return nil, nil, fmt.Errorf("hither: unknown shape %d", h.shape)
	}
}

func openScope[T any](ctx context.Context, scope Scope[T]) (cb BatchCallback[T], closeFn func(context.Context) error, err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = scope.Close(ctx)
			err = fmt.Errorf("hither: scope open panicked: %v", r)
		}
	}()
	cb, err = scope.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cb, scope.Close, nil
}
