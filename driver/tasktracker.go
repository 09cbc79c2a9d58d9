package driver

import (
	"context"
	"sync"
	"time"

	"goa.design/mini/telemetry"
)

// TaskInfo is the driver's mutable per-task record, updated as state
// updates arrive off the log stream. LastUpdate is refreshed every time a
// StateUpdate for this task is applied, whether or not it actually changed
// anything, so a renderer can distinguish a stalled task from a quiet one.
type TaskInfo struct {
	TaskID         string
	RootFunctionID string
	State          TaskState
	LastUpdate     time.Time
}

// TaskObserver is notified every time the task tracker's view of the world
// changes. It's a one-way push — the tracker never holds a reference back
// into whatever owns the observer (e.g. a renderer), so there's no cycle
// between driver state and UI state.
type TaskObserver func(tasks []TaskInfo)

// TaskTracker maintains one TaskInfo per task id, keyed by the state
// updates the log-stream task feeds it.
type TaskTracker struct {
	logger telemetry.Logger

	mu    sync.Mutex
	tasks map[string]*TaskInfo
}

// NewTaskTracker constructs an empty TaskTracker.
func NewTaskTracker(logger telemetry.Logger) *TaskTracker {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &TaskTracker{logger: logger, tasks: make(map[string]*TaskInfo)}
}

// Update applies one platform state update. Updates with an empty TaskID
// are not tied to any specific task and are ignored, mirroring the
// source's treatment of untagged log items.
func (t *TaskTracker) Update(ctx context.Context, u StateUpdate) {
	if u.TaskID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.tasks[u.TaskID]
	if !ok {
		t.logger.Info(ctx, "task initialized", "component", "tasktracker", "task_id", u.TaskID, "state", u.State.String())
		t.tasks[u.TaskID] = &TaskInfo{TaskID: u.TaskID, RootFunctionID: u.RootFunctionID, State: u.State, LastUpdate: time.Now()}
		return
	}

	if info.RootFunctionID != u.RootFunctionID {
		t.logger.Warn(ctx, "task function id changed", "component", "tasktracker",
			"task_id", u.TaskID, "prev_fn_id", info.RootFunctionID, "fn_id", u.RootFunctionID)
		info.RootFunctionID = u.RootFunctionID
	}
	if info.State != u.State {
		t.logger.Info(ctx, "task state changed", "component", "tasktracker",
			"task_id", u.TaskID, "prev_state", info.State.String(), "state", u.State.String())
		info.State = u.State
	}
	info.LastUpdate = time.Now()
}

// Tasks returns a snapshot of every tracked task.
func (t *TaskTracker) Tasks() []TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TaskInfo, 0, len(t.tasks))
	for _, info := range t.tasks {
		out = append(out, *info)
	}
	return out
}
