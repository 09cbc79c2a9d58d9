// Package driver implements the experiment driver (§4.F): app lifecycle,
// the log-stream task that demultiplexes stdout into call-state events and
// plain output, the per-task state tracker, and a rate-limited renderer.
package driver

import "context"

// FD identifies which stream a log line came from, mirroring the
// source's FD enum (kept as a supplemental distinction: the call-state
// grammar only needs to tell call-state lines from everything else, but a
// real platform reports stdout/stderr/infra separately and callers likely
// want to keep that).
type FD int

const (
	FDStdout FD = iota
	FDStderr
	FDInfo
)

// TaskState is the coarse lifecycle state the hosting platform reports
// for a task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskCreating
	TaskActive
	TaskCompleted
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskCreating:
		return "creating"
	case TaskActive:
		return "active"
	case TaskCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// LogItem is one line of output from a task, tagged with which stream it
// came from.
type LogItem struct {
	TaskID         string
	RootFunctionID string
	FD             FD
	Data           string
}

// StateUpdate is a platform-reported task lifecycle transition.
type StateUpdate struct {
	TaskID         string
	RootFunctionID string
	State          TaskState
}

// LogBatch is one unit of platform log delivery: any mix of plain log
// items and task state updates, as the platform happens to batch them.
type LogBatch struct {
	Items   []LogItem
	Updates []StateUpdate
	// Done is set when the platform has no more logs to deliver for this
	// run (the app has fully stopped).
	Done bool
}

// AppInfo describes the running application, handed back by Platform.Start.
type AppInfo struct {
	ID   string
	Name string
	URL  string
}

// Platform abstracts the external hosting platform (Modal, or any
// container-per-call execution service) that actually runs remote
// containers. It is the one collaborator the fabric never implements
// itself — only consumes.
type Platform interface {
	// Start brings up the application and returns its identity.
	Start(ctx context.Context) (AppInfo, error)
	// Stop requests the application shut down. It does not wait for logs
	// to finish draining — that's the caller's job via LogStream.
	Stop(ctx context.Context) error
	// LogStream returns a channel of log batches for the running
	// application. The channel closes when the platform has nothing more
	// to deliver (typically after Stop, once trailing logs drain).
	LogStream(ctx context.Context) (<-chan LogBatch, error)
}

// ErrAuthFailure wraps an authentication failure from the platform with a
// user-facing remediation hint. Auth failures are never retried.
type ErrAuthFailure struct {
	Hint  string
	Cause error
}

func (e *ErrAuthFailure) Error() string {
	return "driver: authentication failed: " + e.Cause.Error() + " (" + e.Hint + ")"
}

func (e *ErrAuthFailure) Unwrap() error { return e.Cause }
