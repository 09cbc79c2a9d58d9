package driver

import (
	"context"
	"strings"

	"goa.design/mini/callstate"
	"goa.design/mini/telemetry"
	"goa.design/mini/urn"
)

// OutputHandler receives plain (non-call-state) log lines, but only while
// at least one tracked call is in the start state — this filters platform
// noise emitted between calls.
type OutputHandler func(line string)

// logStream demultiplexes one run's LogBatch stream: state updates go to
// the task tracker, call-state URN lines go to the call tracker (and are
// suppressed from output), and everything else is passed to the output
// handler while any call is actively running.
type logStream struct {
	runID   string
	tasks   *TaskTracker
	calls   *callstate.Tracker
	output  OutputHandler
	logger  telemetry.Logger
	observe TaskObserver
	tracer  telemetry.Tracer
	metrics telemetry.Metrics
}

func newLogStream(runID string, tasks *TaskTracker, calls *callstate.Tracker, output OutputHandler, observe TaskObserver, logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) *logStream {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if output == nil {
		output = func(string) {}
	}
	if observe == nil {
		observe = func([]TaskInfo) {}
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &logStream{runID: runID, tasks: tasks, calls: calls, output: output, logger: logger, observe: observe, tracer: tracer, metrics: metrics}
}

// run drains batches until the channel closes or ctx is done.
func (l *logStream) run(ctx context.Context, batches <-chan LogBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			l.handleBatch(ctx, batch)
			if batch.Done {
				return
			}
		}
	}
}

func (l *logStream) handleBatch(ctx context.Context, batch LogBatch) {
	ctx, span := l.tracer.Start(ctx, "driver.handle_batch")
	defer span.End()
	l.metrics.Count("driver.log_batches", 1, "component", "logstream")

	for _, u := range batch.Updates {
		l.tasks.Update(ctx, u)
	}
	if len(batch.Updates) > 0 {
		l.observe(l.tasks.Tasks())
	}

	for _, item := range batch.Items {
		for _, line := range splitLines(item.Data) {
			l.handleLine(ctx, line)
		}
	}
}

func (l *logStream) handleLine(ctx context.Context, line string) {
	if callstate.Matches(line) {
		cs, err := callstate.Parse(line)
		if err != nil {
			l.logger.Warn(ctx, "malformed call-state line", "component", "logstream", "line", line, "err", err)
			return
		}
		if err := l.calls.Handle(ctx, cs); err != nil {
			l.logger.Error(ctx, "call state violation", "component", "logstream", "err", err)
		}
		return
	}

	if urn.IsExperimentURN(line) {
		// Reserved: a mini:-prefixed line that isn't a recognized
		// call-state URN. Never surfaced to the output handler.
		return
	}

	if l.calls.AnyRunning() {
		l.output(line)
	}
}

// splitLines splits on '\n' and drops a single trailing empty element
// produced by a trailing newline, preserving any other empty lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
