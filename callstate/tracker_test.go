package callstate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/mini/callstate"
)

func TestTracker_HappyPath(t *testing.T) {
	tr := callstate.NewTracker("r0", nil)
	ctx := context.Background()

	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c0", State: callstate.Guard}))
	require.False(t, tr.AnyRunning())
	require.True(t, tr.AnyActive())

	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c0", State: callstate.Start}))
	require.True(t, tr.AnyRunning())
	require.True(t, tr.AnyActive())

	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c0", State: callstate.End}))
	require.False(t, tr.AnyRunning())
	require.False(t, tr.AnyActive())
}

func TestTracker_ErrorThenEnd(t *testing.T) {
	tr := callstate.NewTracker("r0", nil)
	ctx := context.Background()

	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c1", State: callstate.Guard}))
	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c1", State: callstate.Start}))
	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c1", State: callstate.Error}))
	require.True(t, tr.AnyActive())
	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c1", State: callstate.End}))
	require.False(t, tr.AnyActive())
}

func TestTracker_RejectsOutOfOrderTransition(t *testing.T) {
	tr := callstate.NewTracker("r0", nil)
	ctx := context.Background()

	// Start before guard is illegal.
	err := tr.Handle(ctx, callstate.CallState{CallID: "c2", State: callstate.Start})
	require.Error(t, err)
	var transErr *callstate.TransitionError
	require.True(t, errors.As(err, &transErr))

	// end can't follow guard directly.
	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c3", State: callstate.Guard}))
	err = tr.Handle(ctx, callstate.CallState{CallID: "c3", State: callstate.End})
	require.Error(t, err)
	require.True(t, errors.As(err, &transErr))
}

// warnRecorder is a Logger that counts Warn calls.
type warnRecorder struct{ warns int }

func (*warnRecorder) Debug(context.Context, string, ...any)  {}
func (*warnRecorder) Info(context.Context, string, ...any)   {}
func (r *warnRecorder) Warn(context.Context, string, ...any) { r.warns++ }
func (*warnRecorder) Error(context.Context, string, ...any)  {}

func TestHandle_FnIDChangeWarns(t *testing.T) {
	logger := &warnRecorder{}
	tr := callstate.NewTracker("r0", logger)
	ctx := context.Background()

	require.NoError(t, tr.Handle(ctx, callstate.CallState{CallID: "c4", FnID: "f0", State: callstate.Guard}))
	// Same call id, different fn id: the tracker overwrites rather than
	// rejecting the event, on the assumption that whatever is producing IDs
	// has stumbled into a collision rather than the fabric misbehaving.
	err := tr.Handle(ctx, callstate.CallState{CallID: "c4", FnID: "f1", State: callstate.Start})
	require.NoError(t, err)
	require.Equal(t, 1, logger.warns)

	hist := tr.History()
	require.Len(t, hist, 2)
	require.Equal(t, "f1", hist[1].FnID)
}

func TestTracker_History(t *testing.T) {
	tr := callstate.NewTracker("r0", nil)
	ctx := context.Background()
	_ = tr.Handle(ctx, callstate.CallState{CallID: "c5", State: callstate.Guard})
	_ = tr.Handle(ctx, callstate.CallState{CallID: "c5", State: callstate.Start})
	require.Len(t, tr.History(), 2)
}
