package sendto_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/mini/config"
	"goa.design/mini/sendto"
	"goa.design/mini/sendto/memqueue"
)

func TestChannel_SingleProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []int

	receive := func(_ context.Context, values []int) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, values...)
		return nil
	}

	ch, producer := sendto.Open(ctx, memqueue.New(), receive, config.New())

	require.NoError(t, producer.SendBatch(ctx, []int{1, 2, 3}))
	require.NoError(t, producer.Send(ctx, 4))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 4
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close(ctx))
}

func TestChannel_ManyProducers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []int

	receive := func(_ context.Context, values []int) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, values...)
		return nil
	}

	ch, producer := sendto.Open(ctx, memqueue.New(), receive, config.New())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = producer.Send(ctx, n)
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 10
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close(ctx))
}

func TestChannel_CloseDrainsTrailingMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []string

	receive := func(_ context.Context, values []string) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, values...)
		return nil
	}

	ch, producer := sendto.Open(ctx, memqueue.New(), receive, config.New())

	require.NoError(t, producer.Send(ctx, "trailing"))
	require.NoError(t, ch.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, received, "trailing")
}

// TestChannel_CloseDrainsTrailingMessages_CtxAlreadyCanceled mirrors the
// real shutdown path hither.Run wires up: the same ctx given to Open is
// canceled (waking the consumer's signal wait via ctx.Done rather than a
// signal token) before Close is called with a separate, live ctx, exactly
// as hither.Run's shutdown goroutine does via context.Background(). The
// value is put directly on the queue, bypassing the producer's signal, so
// the consumer is guaranteed to still be blocked waiting when ctx is
// canceled — the only way to see it is the final drain that runs with an
// already-done ctx. The consumer's own ctx being done must never cause
// that trailing drain to discard values it actually found.
func TestChannel_CloseDrainsTrailingMessages_CtxAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var received []string

	receive := func(_ context.Context, values []string) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, values...)
		return nil
	}

	queue := memqueue.New()
	ch, _ := sendto.Open(ctx, queue, receive, config.New())

	encoded, err := json.Marshal("trailing")
	require.NoError(t, err)
	require.NoError(t, queue.PutMany(ctx, "", [][]byte{encoded}))

	cancel()

	require.NoError(t, ch.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, received, "trailing")
}
