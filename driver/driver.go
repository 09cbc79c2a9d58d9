package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"goa.design/mini/callstate"
	"goa.design/mini/config"
)

// ErrShutdownTimeout is returned (or logged, per the configured
// ErrorPolicy) when the log-stream task doesn't finish within the
// configured shutdown timeout once Stop is requested.
var ErrShutdownTimeout = errors.New("driver: timed out waiting for log stream to finish")

// Run is one run scope: it owns the app, the run_id, the call tracker, and
// the log-stream task for exactly one lifetime.
type Run struct {
	platform Platform
	opts     *config.Options

	runID string
	app   AppInfo

	Calls *callstate.Tracker
	Tasks *TaskTracker

	cancelStream context.CancelFunc
	streamDone   chan struct{}
}

// Start brings up the run scope: starts the app on the platform, assigns
// a fresh run_id, and launches the log-stream task. The caller must call
// Stop when done; Stop always releases platform resources even if the
// body that ran in between panicked or errored.
func Start(ctx context.Context, platform Platform, output OutputHandler, observe TaskObserver, opts *config.Options) (*Run, error) {
	if opts == nil {
		opts = config.New()
	}

	ctx, span := opts.Tracer.Start(ctx, "driver.start_app")
	defer span.End()

	app, err := platform.Start(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("driver: start app: %w", err)
	}
	opts.Metrics.Count("driver.runs_started", 1, "component", "driver")

	runID := uuid.NewString()
	opts.Logger.Info(ctx, "run started", "component", "driver", "run_id", runID, "app", app.Name)

	batches, err := platform.LogStream(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = platform.Stop(ctx)
		return nil, fmt.Errorf("driver: open log stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		platform:     platform,
		opts:         opts,
		runID:        runID,
		app:          app,
		Calls:        callstate.NewTracker(runID, opts.Logger),
		Tasks:        NewTaskTracker(opts.Logger),
		cancelStream: cancel,
		streamDone:   make(chan struct{}),
	}

	stream := newLogStream(runID, run.Tasks, run.Calls, output, observe, opts.Logger, opts.Tracer, opts.Metrics)
	go func() {
		defer close(run.streamDone)
		stream.run(streamCtx, batches)
	}()

	return run, nil
}

// RunID returns the run's id, satisfying guard.RunScope. The bool is
// always true for a started Run; it exists so callers without an active
// run (never holding a *Run at all) can report guard.ErrNotRunning.
func (r *Run) RunID() (string, bool) { return r.runID, true }

// AppInfo returns the platform's description of the running app.
func (r *Run) AppInfo() AppInfo { return r.app }

// Stop requests the platform stop the app, then waits for the log-stream
// task to finish within the configured ShutdownTimeout. On timeout, the
// stream task is canceled and the timeout is logged or returned per the
// configured ErrorPolicy.
func (r *Run) Stop(ctx context.Context) error {
	ctx, span := r.opts.Tracer.Start(ctx, "driver.stop_app")
	defer span.End()

	stopErr := r.platform.Stop(ctx)
	if stopErr != nil {
		span.RecordError(stopErr)
		span.SetStatus(codes.Error, stopErr.Error())
	}
	r.opts.Metrics.Count("driver.runs_stopped", 1, "component", "driver")

	timer := time.NewTimer(r.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-r.streamDone:
	case <-timer.C:
		r.cancelStream()
		<-r.streamDone
		if r.opts.Errors == config.ErrThrow {
			err := errors.Join(stopErr, ErrShutdownTimeout)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		r.opts.Logger.Warn(ctx, "log stream didn't finish within shutdown timeout", "component", "driver", "run_id", r.runID)
	}

	if stopErr != nil {
		return fmt.Errorf("driver: stop app: %w", stopErr)
	}
	return nil
}
