// Package sendto implements the many-producer/one-consumer shared queue
// described in §4.C: a default partition carries payloads, a signal
// partition carries wakeups, and shutdown drains whatever is still on the
// default partition within a trailing timeout.
package sendto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"goa.design/mini/config"
	"goa.design/mini/telemetry"
)

// ErrTrailingDrainTimeout is returned (or logged, per the configured
// ErrorPolicy) when Close gives up waiting for the consumer to finish
// draining the default partition.
var ErrTrailingDrainTimeout = errors.New("sendto: timed out waiting for trailing messages")

// maxGetLen bounds how many values a single GetMany call pulls off the
// queue at once, mirroring Modal's own Q_MAX_LEN guard against unbounded
// batch sizes.
const maxGetLen = 1000

const signalPartition = "signal"

// Queue is the distributed (or in-process) broker SendTo is built on. It
// operates on raw bytes; ProducerRef and Channel marshal values to and from
// plain JSON.
//
// Implementations: memqueue (in-process, default for tests and
// single-process drivers) and sendto/pulsequeue (Redis-backed via
// goa.design/pulse, for genuine cross-process delivery).
type Queue interface {
	// PutMany appends values to the named partition. The empty string
	// names the default payload partition.
	PutMany(ctx context.Context, partition string, values [][]byte) error
	// GetMany removes up to max values from the named partition. If block
	// is true and the partition is empty, it waits for at least one value
	// or ctx cancellation.
	GetMany(ctx context.Context, partition string, max int, block bool) ([][]byte, error)
	// Clear discards every partition's contents.
	Clear(ctx context.Context) error
}

// ProducerRef is handed to callers that need to put values on a Channel.
// It holds no reference to driver state, only the Queue handle (the
// partition names are package constants). It has no exported fields and no
// serialized form; Open is the only way to obtain one.
type ProducerRef[T any] struct {
	queue Queue
}

// Send appends a single value to the channel and wakes the consumer.
func (p ProducerRef[T]) Send(ctx context.Context, value T) error {
	return p.SendBatch(ctx, []T{value})
}

// SendBatch appends values to the channel and wakes the consumer once per
// call, regardless of batch size.
func (p ProducerRef[T]) SendBatch(ctx context.Context, values []T) error {
	if len(values) == 0 {
		return nil
	}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("sendto: encode value: %w", err)
		}
		encoded[i] = b
	}
	if err := p.queue.PutMany(ctx, "", encoded); err != nil {
		return fmt.Errorf("sendto: put values: %w", err)
	}
	if err := p.queue.PutMany(ctx, signalPartition, [][]byte{[]byte("1")}); err != nil {
		return fmt.Errorf("sendto: signal consumer: %w", err)
	}
	return nil
}

// Receive is the batched callback a Channel's consumer loop drives.
type Receive[T any] func(ctx context.Context, values []T) error

// Channel is a running many-producer/one-consumer pipe: values sent via its
// Producer are delivered, batched, to the receive function supplied to
// Open, until Close is called.
type Channel[T any] struct {
	queue  Queue
	opts   *config.Options
	logger telemetry.Logger

	stop chan struct{}
	done chan struct{}
}

// Open starts a consumer goroutine reading from queue and starts feeding
// batches to receive, and returns the running Channel along with a
// ProducerRef that can be handed to local or remote producers.
func Open[T any](ctx context.Context, queue Queue, receive Receive[T], opts *config.Options) (*Channel[T], ProducerRef[T]) {
	if opts == nil {
		opts = config.New()
	}
	ch := &Channel[T]{
		queue:  queue,
		opts:   opts,
		logger: opts.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go ch.consume(ctx, receive)
	return ch, ProducerRef[T]{queue: queue}
}

func (ch *Channel[T]) consume(ctx context.Context, receive Receive[T]) {
	defer close(ch.done)
	for {
		stopped := ch.waitForSignalOrStop(ctx)

		spanCtx, span := ch.opts.Tracer.Start(ctx, "sendto.consume")
		values, err := ch.drainDefault(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			ch.logger.Error(ctx, "sendto: drain failed", "component", "sendto", "err", err)
		} else if len(values) > 0 {
			ch.opts.Metrics.Count("sendto.values_received", int64(len(values)), "component", "sendto")
			if err := receive(spanCtx, values); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				ch.logger.Error(ctx, "sendto: receive callback failed", "component", "sendto", "err", err)
			}
		}
		span.End()

		if stopped {
			_ = ch.queue.Clear(ctx)
			return
		}
	}
}

// waitForSignalOrStop blocks until a signal arrives on the signal
// partition, Close has been called, or ctx is done, whichever happens
// first. It returns true if the stop channel fired or ctx is done.
func (ch *Channel[T]) waitForSignalOrStop(ctx context.Context) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan struct{}, 1)
	go func() {
		_, _ = ch.queue.GetMany(waitCtx, signalPartition, maxGetLen, true)
		select {
		case sigCh <- struct{}{}:
		default:
		}
	}()

	select {
	case <-sigCh:
		return false
	case <-ch.stop:
		return true
	case <-ctx.Done():
		return true
	}
}

// drainDefault pulls everything currently on the default partition without
// blocking, regardless of why consume woke up — a signal guarantees at
// least one value is present, but a stop may race a final send, so we
// always drain rather than trusting the wakeup reason alone.
func (ch *Channel[T]) drainDefault(ctx context.Context) ([]T, error) {
	var raw [][]byte
	for {
		batch, err := ch.queue.GetMany(ctx, "", maxGetLen, false)
		if err != nil {
			if len(raw) == 0 {
				return nil, err
			}
			ch.logger.Error(ctx, "sendto: drain failed", "component", "sendto", "err", err)
			break
		}
		raw = append(raw, batch...)
		if len(batch) < maxGetLen {
			break
		}
	}
	values := make([]T, 0, len(raw))
	for _, b := range raw {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			ch.logger.Error(ctx, "sendto: decode value", "component", "sendto", "err", err)
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

// Close signals the consumer to stop, waits for it to finish draining the
// default partition (bounded by the configured TrailingTimeout), and
// returns ErrTrailingDrainTimeout if it doesn't finish in time. Per the
// configured ErrorPolicy, a timeout is either returned or just logged.
func (ch *Channel[T]) Close(ctx context.Context) error {
	close(ch.stop)

	if ch.opts.TrailingTimeout == nil {
		<-ch.done
		return nil
	}

	timer := time.NewTimer(*ch.opts.TrailingTimeout)
	defer timer.Stop()
	select {
	case <-ch.done:
		return nil
	case <-timer.C:
		if ch.opts.Errors == config.ErrThrow {
			return ErrTrailingDrainTimeout
		}
		ch.logger.Warn(ctx, "sendto: timed out waiting for trailing messages", "component", "sendto")
		return nil
	}
}
