package guard

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"goa.design/mini/callstate"
	"goa.design/mini/telemetry"
)

// StdoutWriter is the narrow seam Thither writes call-state URN lines to —
// normally the remote container's real stdout, captured as an io.Writer
// so tests can supply a bytes.Buffer instead of spawning a platform.
type StdoutWriter = io.Writer

// Thither wraps a user async function so that every invocation, wherever
// it runs, brackets itself with guard/start/error/end URN lines on stdout
// and composes the registered global/function-specific guards around the
// call.
type Thither struct {
	fn      RemoteFn
	target  Target
	global  []Guard
	specOf  []Guard
	stdout  StdoutWriter
	logger  telemetry.Logger
	tracer  telemetry.Tracer
	metrics telemetry.Metrics
}

// New constructs a Thither for one registered remote function. fnID
// should be stable across invocations (assigned once at registration
// time, per spec §3's CallState.fn_id); global and specific guards are
// captured by reference to the slices given here — callers that register
// guards after calling New will not see them applied. tracer and metrics
// may be nil, defaulting to the no-op implementations.
func New(name, fnID string, target Target, global, specific []Guard, stdout StdoutWriter, logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) *Thither {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Thither{
		fn:      RemoteFn{Name: name, ID: fnID},
		target:  target,
		global:  global,
		specOf:  specific,
		stdout:  stdout,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
	}
}

// remoteScope brackets one call's URN lifecycle. It is a distinct type
// (rather than a bare defer/recover inline in Invoke) so the "always emit
// end, even on panic" guarantee is visible as a single named invariant:
// close always runs, emits the end URN, and — if the call was unwinding
// because of a panic rather than a returned error — re-panics afterward
// so the caller still observes the original failure.
type remoteScope struct {
	t             *Thither
	runID, callID string
}

func (t *Thither) open(runID, callID string) *remoteScope {
	s := &remoteScope{t: t, runID: runID, callID: callID}
	t.emit(runID, s.callID, callstate.Guard, "")
	return s
}

func (s *remoteScope) close(recovered any, result error) {
	msg := ""
	if result != nil {
		msg = result.Error()
	}
	if result != nil || recovered != nil {
		errMsg := msg
		if recovered != nil {
			errMsg = fmt.Sprintf("panic: %v", recovered)
		}
		s.t.emit(s.runID, s.callID, callstate.Error, errMsg)
	}
	s.t.emit(s.runID, s.callID, callstate.End, "")
	if recovered != nil {
		panic(recovered)
	}
}

// Invoke runs the wrapped function once inside the remote container: it
// emits guard/start/[error]/end URNs to stdout around the composed
// guard chain, and re-raises any error (or panic) from the target
// unchanged. callID is generated by the local stub (Stub.Call) and
// forwarded here unchanged — Invoke never mints its own.
func (t *Thither) Invoke(ctx context.Context, runID, callID string) (err error) {
	ctx, span := t.tracer.Start(ctx, "thither.invoke")
	scope := t.open(runID, callID)
	defer func() {
		recovered := recover()
		switch {
		case recovered != nil:
			span.RecordError(fmt.Errorf("panic: %v", recovered))
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", recovered))
			t.metrics.Count("thither.invoke", 1, "fn", t.fn.Name, "outcome", "panic")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			t.metrics.Count("thither.invoke", 1, "fn", t.fn.Name, "outcome", "error")
		default:
			t.metrics.Count("thither.invoke", 1, "fn", t.fn.Name, "outcome", "ok")
		}
		span.End()
		scope.close(recovered, err)
	}()

	composed := Compose(t.fn, t.target, t.global, t.specOf)

	t.emit(runID, scope.callID, callstate.Start, "")

	err = composed(ctx)
	return err
}

func (t *Thither) emit(runID, callID string, state callstate.State, msg string) {
	line := callstate.CallState{
		RunID: runID, FnName: t.fn.Name, FnID: t.fn.ID, CallID: callID, State: state, Msg: msg,
	}.Encode()
	if t.stdout != nil {
		fmt.Fprintln(t.stdout, line)
	}
}

// RunScope is the narrow contract Thither's local stub needs from the
// driver to learn the current run's id — implemented by driver.Run.
type RunScope interface {
	RunID() (string, bool)
}

// Stub is the local-process entry point a Thither-decorated function is
// called through. It requires an active run scope — calling it outside
// one fails with ErrNotRunning — and generates a fresh call_id, forwarding
// it and the run's run_id to Invoker, which is responsible for actually
// scheduling the remote invocation (e.g. over the hosting platform's RPC),
// however that's wired up.
type Stub struct {
	scope   RunScope
	invoker func(ctx context.Context, runID, callID string) error
}

// NewStub builds a Stub bound to scope and invoker.
func NewStub(scope RunScope, invoker func(ctx context.Context, runID, callID string) error) *Stub {
	return &Stub{scope: scope, invoker: invoker}
}

// Call invokes the remote function. Returns ErrNotRunning if scope has no
// active run.
func (s *Stub) Call(ctx context.Context) error {
	runID, ok := s.scope.RunID()
	if !ok {
		return ErrNotRunning
	}
	callID := uuid.NewString()
	return s.invoker(ctx, runID, callID)
}
