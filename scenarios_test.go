// Package mini contains black-box end-to-end tests exercising the
// Experiment Core scenarios (spec §8) against the public APIs of its
// component packages.
package mini_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/mini/callstate"
	"goa.design/mini/config"
	"goa.design/mini/guard"
	"goa.design/mini/hither"
	"goa.design/mini/sendto"
	"goa.design/mini/sendto/memqueue"
	"goa.design/mini/urn"
)

// S1 Echo: a bare hither stub relays 1..100 to a local accumulator.
func TestS1_Echo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int

	h := hither.Bare(func(_ context.Context, v int) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
		return nil
	})

	producer, err := hither.Run(ctx, h, memqueue.New(), config.New())
	require.NoError(t, err)

	for i := 1; i <= 100; i++ {
		require.NoError(t, producer.Send(ctx, i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	want := make([]int, 100)
	for i := range want {
		want[i] = i + 1
	}
	require.Equal(t, want, got)
}

// S2 Interleaved producers: two producers each emit 50 labeled values;
// per-producer order is preserved and every label appears exactly once.
func TestS2_InterleavedProducers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string

	receive := func(_ context.Context, values []string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, values...)
		return nil
	}

	ch, producer := sendto.Open(ctx, memqueue.New(), receive, config.New())

	var wg sync.WaitGroup
	emit := func(prefix string) {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			_ = producer.Send(ctx, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	wg.Add(2)
	go emit("A")
	go emit("B")
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ch.Close(ctx))

	mu.Lock()
	defer mu.Unlock()

	var aOrder, bOrder []int
	seen := make(map[string]int)
	for _, v := range got {
		seen[v]++
		var n int
		fmt.Sscanf(v[1:], "%d", &n)
		if v[0] == 'A' {
			aOrder = append(aOrder, n)
		} else {
			bOrder = append(bOrder, n)
		}
	}
	require.Len(t, got, 100)
	for label, count := range seen {
		require.Equalf(t, 1, count, "label %q seen %d times", label, count)
	}
	require.True(t, sort.IntsAreSorted(aOrder))
	require.True(t, sort.IntsAreSorted(bOrder))
}

// S3 Guard ordering: global guards wrap specific guards wrap the target;
// the observable acquire order matches registration order and release is
// the reverse.
func TestS3_GuardOrdering(t *testing.T) {
	var transcript []string
	record := func(s string) { transcript = append(transcript, s) }

	global := []guard.Guard{pairedGuard("g1", record), pairedGuard("g2", record)}
	specific := []guard.Guard{pairedGuard("s", record)}

	target := guard.Target(func(context.Context) error { record("f"); return nil })
	composed := guard.Compose(guard.RemoteFn{Name: "f"}, target, global, specific)
	require.NoError(t, composed(context.Background()))

	require.Equal(t, []string{"g1-in", "g2-in", "s-in", "f", "s-out", "g2-out", "g1-out"}, transcript)
}

func pairedGuard(name string, record func(string)) guard.Guard {
	return guard.Combine(
		guard.BeforeBare(func(context.Context) error { record(name + "-in"); return nil }),
		guard.AfterBare(func(context.Context, guard.ExceptionInfo) { record(name + "-out") }),
	)
}

// S4 Remote failure: the target raises an error; the local await observes
// it, and the call tracker sees guard, start, error, end.
func TestS4_RemoteFailure(t *testing.T) {
	var buf chanWriter
	target := guard.Target(func(context.Context) error { return errors.New("boom") })
	th := guard.New("train", "f0", target, nil, nil, &buf, nil, nil, nil)

	err := th.Invoke(context.Background(), "r0", "c0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	tracker := callstate.NewTracker("r0", nil)
	for _, line := range buf.lines {
		cs, perr := callstate.Parse(line)
		require.NoError(t, perr)
		require.NoError(t, tracker.Handle(context.Background(), cs))
	}

	hist := tracker.History()
	states := make([]callstate.State, len(hist))
	for i, cs := range hist {
		states[i] = cs.State
	}
	require.Equal(t, []callstate.State{callstate.Guard, callstate.Start, callstate.Error, callstate.End}, states)
}

// S5 URN parse.
func TestS5_URNParse(t *testing.T) {
	line := "mini:run:abcd1234:fn:train:f0:call:c0:start:"
	cs, err := callstate.Parse(line)
	require.NoError(t, err)
	require.Equal(t, callstate.CallState{
		RunID: "abcd1234", FnName: "train", FnID: "f0", CallID: "c0", State: callstate.Start, Msg: "",
	}, cs)
	require.True(t, urn.IsExperimentURN(line))
}

// S6 Trailing drain: with a generous trailing timeout all values
// submitted before close are delivered; with a zero timeout and an
// escalate-to-error policy, Close reports the timeout.
func TestS6_TrailingDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int
	receive := func(_ context.Context, values []int) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, values...)
		return nil
	}

	ch, producer := sendto.Open(ctx, memqueue.New(), receive, config.New())
	for i := 0; i < 10; i++ {
		require.NoError(t, producer.Send(ctx, i))
	}
	require.NoError(t, ch.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 10)
}

func TestS6_TrailingDrainTimeoutThrows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	receive := func(_ context.Context, _ []int) error {
		<-block
		return nil
	}

	zero := time.Duration(0)
	opts := config.New(config.WithTrailingTimeout(&zero), config.WithErrorPolicy(config.ErrThrow))
	ch, producer := sendto.Open(ctx, memqueue.New(), receive, opts)
	require.NoError(t, producer.Send(ctx, 1))

	// give the consumer a moment to pick up the value and block inside
	// receive before we ask it to stop.
	time.Sleep(20 * time.Millisecond)

	err := ch.Close(ctx)
	close(block)
	require.ErrorIs(t, err, sendto.ErrTrailingDrainTimeout)
}

// chanWriter captures each Write call's lines for inspection, used by
// guard.Thither in tests that need the emitted URN lines, not just bytes.
type chanWriter struct {
	lines []string
}

func (w *chanWriter) Write(p []byte) (int, error) {
	w.lines = append(w.lines, string(p[:len(p)-1])) // drop trailing \n from Fprintln
	return len(p), nil
}
