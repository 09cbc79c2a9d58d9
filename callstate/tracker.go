package callstate

import (
	"context"
	"fmt"
	"sync"

	"goa.design/mini/telemetry"
)

// TransitionError reports an illegal call-state transition. It is a
// distinct type (rather than a bare error) so callers can classify it with
// errors.As instead of parsing the message.
type TransitionError struct {
	From CallState
	To   CallState
}

func (e *TransitionError) Error() string {
	fromState := State("")
	if e.From.CallID != "" {
		fromState = e.From.State
	}
	return fmt.Sprintf("callstate: invalid transition %q -> %q for call %q", fromState, e.To.State, e.To.CallID)
}

// validTransitions maps a target state to the set of states it may follow.
// The zero value of the "from" slot (absent from calls) is represented by
// the empty State.
var validTransitions = map[State][]State{
	Guard: {""},
	Start: {Guard},
	Error: {Guard, Start},
	End:   {Start, Error},
}

func allowedFrom(to, from State) bool {
	for _, s := range validTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Tracker is the process-wide, per-run mapping of call_id to its current
// state, with aggregate counters and a linear history. It is single
// threaded by contract (all updates happen on the log-stream task) but
// guards its maps with a mutex so read-only queries (AnyActive, AnyRunning)
// remain safe to call from other goroutines, e.g. a renderer.
type Tracker struct {
	RunID string

	logger telemetry.Logger

	mu      sync.Mutex
	calls   map[string]State
	fnIDs   map[string]string
	counts  map[State]int
	history []CallState
}

// NewTracker constructs a Tracker for a single run.
func NewTracker(runID string, logger telemetry.Logger) *Tracker {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Tracker{
		RunID:  runID,
		logger: logger,
		calls:  make(map[string]State),
		fnIDs:  make(map[string]string),
		counts: make(map[State]int),
	}
}

// Handle applies a state event to the tracker. Illegal transitions are
// reported as a *TransitionError, logged at error level, and the event is
// discarded: a buggy worker can never take down the driver.
//
// If the same call_id reappears under a different fn_id — a producer bug
// — the prior state is overwritten and a warning is logged, following the
// source's permissive behavior rather than rejecting the event outright.
func (t *Tracker) Handle(ctx context.Context, cs CallState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, cs)

	if prevFnID, ok := t.fnIDs[cs.CallID]; ok && prevFnID != cs.FnID {
		t.logger.Warn(ctx, "call id reused under a different fn id",
			"component", "callstate-tracker",
			"call_id", cs.CallID,
			"prev_fn_id", prevFnID,
			"fn_id", cs.FnID,
		)
	}
	t.fnIDs[cs.CallID] = cs.FnID

	prev, hadPrev := t.calls[cs.CallID]
	if !allowedFrom(cs.State, prev) {
		var from CallState
		if hadPrev {
			from = CallState{CallID: cs.CallID, State: prev}
		}
		err := &TransitionError{From: from, To: cs}
		t.logger.Error(ctx, "call state violation",
			"component", "callstate-tracker",
			"call_id", cs.CallID,
			"from", string(prev),
			"to", string(cs.State),
			"err", err,
		)
		return err
	}

	t.history = append(t.history, cs)
	t.fnIDs[cs.CallID] = cs.FnID
	if hadPrev {
		t.counts[prev]--
	}
	t.counts[cs.State]++
	t.calls[cs.CallID] = cs.State
	return nil
}

// AnyActive reports whether any observed call has not reached End.
func (t *Tracker) AnyActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.calls {
		if s != End {
			return true
		}
	}
	return false
}

// AnyRunning reports whether any observed call is currently in Start.
func (t *Tracker) AnyRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[Start] > 0
}

// History returns a copy of the linear history of accepted events so far.
func (t *Tracker) History() []CallState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CallState, len(t.history))
	copy(out, t.history)
	return out
}
