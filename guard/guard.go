// Package guard implements ordered before/after wrapping around a remote
// function invocation (§4.E), and Thither, the decorator that emits the
// call's URN lifecycle events to stdout.
//
// Unlike the callback-shape detection in the source this package is
// distilled from, a guard's flavor is never inferred from callback arity:
// each of the four flavors (bare-before, fn-before, bare-after, fn-after)
// has its own constructor, so the composition is statically known.
package guard

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotRunning is returned when a Thither stub is invoked outside a run
// scope — there is no run_id to stamp onto the call's URNs.
var ErrNotRunning = errors.New("guard: function invoked outside a run scope")

// RemoteError wraps an exception raised inside the remote target function,
// re-surfaced unchanged to the caller of the local stub.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("guard: remote error (%s): %s", e.Kind, e.Message)
}

// ExceptionInfo is the value-type replacement for the (type, value,
// traceback) triple an `after` guard receives in the source. A zero
// ExceptionInfo (empty Kind) means the target returned without error.
type ExceptionInfo struct {
	Kind    string
	Message string
	Cause   error
}

func exceptionInfoFrom(err error) ExceptionInfo {
	if err == nil {
		return ExceptionInfo{}
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return ExceptionInfo{Kind: remote.Kind, Message: remote.Message, Cause: err}
	}
	return ExceptionInfo{Kind: "error", Message: err.Error(), Cause: err}
}

// RemoteFn identifies the target function a guard is wrapping, passed to
// fn-before/fn-after guards that need to know which function is running.
type RemoteFn struct {
	Name string
	ID   string
}

// Guard is a single before/after wrapper around a remote invocation.
// Guards are composed in registration order (see Compose); the zero value
// is not meaningful, construct with one of Before*/After*.
type Guard struct {
	before func(ctx context.Context, fn RemoteFn) error
	after  func(ctx context.Context, fn RemoteFn, exc ExceptionInfo)
}

// BeforeBare wraps a guard that runs before the call and takes no
// arguments.
func BeforeBare(fn func(ctx context.Context) error) Guard {
	return Guard{before: func(ctx context.Context, _ RemoteFn) error { return fn(ctx) }}
}

// BeforeFn wraps a guard that runs before the call and receives the
// target function's identity.
func BeforeFn(fn func(ctx context.Context, target RemoteFn) error) Guard {
	return Guard{before: fn}
}

// AfterBare wraps a guard that runs after the call (success or failure)
// and takes no arguments besides the exception info.
func AfterBare(fn func(ctx context.Context, exc ExceptionInfo)) Guard {
	return Guard{after: func(ctx context.Context, _ RemoteFn, exc ExceptionInfo) { fn(ctx, exc) }}
}

// AfterFn wraps a guard that runs after the call and receives both the
// target function's identity and the exception info.
func AfterFn(fn func(ctx context.Context, target RemoteFn, exc ExceptionInfo)) Guard {
	return Guard{after: fn}
}

// Combine merges a before-only guard and an after-only guard (e.g. built
// with BeforeBare/BeforeFn and AfterBare/AfterFn) into a single Guard, for
// the common case of a setup/teardown pair that should acquire and
// release together in composition order.
func Combine(before, after Guard) Guard {
	return Guard{before: before.before, after: after.after}
}

// Target is the user function a Thither call ultimately invokes.
type Target func(ctx context.Context) error

// Compose wraps target with guards in the order:
//
//	global[0] -> global[1] -> ... -> specific[0] -> specific[1] -> target
//
// i.e. the first global guard is outermost; an exception raised inside
// target (or inside any inner guard) propagates outward through every
// enclosing guard's after-hook before leaving Compose's returned function.
func Compose(fn RemoteFn, target Target, global, specific []Guard) Target {
	ordered := make([]Guard, 0, len(global)+len(specific))
	ordered = append(ordered, global...)
	ordered = append(ordered, specific...)

	wrapped := target
	for i := len(ordered) - 1; i >= 0; i-- {
		wrapped = wrapOne(fn, ordered[i], wrapped)
	}
	return wrapped
}

func wrapOne(fn RemoteFn, g Guard, inner Target) Target {
	return func(ctx context.Context) (err error) {
		if g.before != nil {
			if err := g.before(ctx, fn); err != nil {
				return fmt.Errorf("guard: before hook failed: %w", err)
			}
		}
		err = inner(ctx)
		if g.after != nil {
			g.after(ctx, fn, exceptionInfoFrom(err))
		}
		return err
	}
}
