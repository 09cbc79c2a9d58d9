// Package pulsequeue is a sendto.Queue backed by goa.design/pulse streams
// over Redis. Each partition maps to its own Pulse stream, named
// "<prefix>.<partition>" (the default partition uses "<prefix>.default"),
// so that the signal partition's Redis stream stays tiny and cheap to
// block-read against even when the default partition is backed up.
package pulsequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
)

const defaultPartitionName = "default"

// Queue is a Redis/Pulse-backed sendto.Queue. One Queue corresponds to one
// logical SendTo channel; Stream/sink naming is derived from Prefix so
// multiple channels can share a Redis instance without collision. Multiple
// producers may call PutMany concurrently (that's the whole point of
// SendTo), so stream/sink lookup is guarded by a mutex.
type Queue struct {
	redis  *redis.Client
	prefix string
	sink   string

	mu      sync.Mutex
	streams map[string]*streaming.Stream
	sinks   map[string]*streaming.Sink
}

// Options configures a pulsequeue.Queue.
type Options struct {
	// Redis is the connection backing every Pulse stream. Required.
	Redis *redis.Client
	// Prefix names the Pulse streams opened by this queue, e.g. a run ID.
	// Required.
	Prefix string
	// SinkName identifies the Pulse consumer group used for reads.
	// Defaults to "mini_sendto".
	SinkName string
}

// New validates opts and returns a Queue. It opens no streams itself: each
// partition's Pulse stream (and sink) is opened on first use by PutMany or
// GetMany.
func New(ctx context.Context, opts Options) (*Queue, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulsequeue: redis client is required")
	}
	if opts.Prefix == "" {
		return nil, errors.New("pulsequeue: prefix is required")
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		sinkName = "mini_sendto"
	}
	return &Queue{
		redis:   opts.Redis,
		prefix:  opts.Prefix,
		sink:    sinkName,
		streams: make(map[string]*streaming.Stream),
		sinks:   make(map[string]*streaming.Sink),
	}, nil
}

func partName(p string) string {
	if p == "" {
		return defaultPartitionName
	}
	return p
}

func (q *Queue) streamFor(ctx context.Context, partition string) (*streaming.Stream, error) {
	name := fmt.Sprintf("%s.%s", q.prefix, partName(partition))

	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.streams[name]; ok {
		return s, nil
	}
	s, err := streaming.NewStream(name, q.redis)
	if err != nil {
		return nil, fmt.Errorf("pulsequeue: open stream %q: %w", name, err)
	}
	q.streams[name] = s
	return s, nil
}

func (q *Queue) sinkFor(ctx context.Context, partition string) (*streaming.Sink, error) {
	name := fmt.Sprintf("%s.%s", q.prefix, partName(partition))

	q.mu.Lock()
	if s, ok := q.sinks[name]; ok {
		q.mu.Unlock()
		return s, nil
	}
	q.mu.Unlock()

	str, err := q.streamFor(ctx, partition)
	if err != nil {
		return nil, err
	}
	sink, err := str.NewSink(ctx, q.sink)
	if err != nil {
		return nil, fmt.Errorf("pulsequeue: open sink on %q: %w", name, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.sinks[name]; ok {
		return existing, nil
	}
	q.sinks[name] = sink
	return sink, nil
}

// PutMany implements sendto.Queue by adding each value as its own Pulse
// stream event; Pulse has no native "put many" primitive, so the Add loop
// mirrors how goa-ai's own Pulse client publishes one event at a time.
func (q *Queue) PutMany(ctx context.Context, partition string, values [][]byte) error {
	str, err := q.streamFor(ctx, partition)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := str.Add(ctx, "value", v); err != nil {
			return fmt.Errorf("pulsequeue: add: %w", err)
		}
	}
	return nil
}

// GetMany implements sendto.Queue by reading and acking up to max events
// off the partition's sink. If block is true and nothing is immediately
// available, it waits for at least one event or ctx cancellation.
func (q *Queue) GetMany(ctx context.Context, partition string, max int, block bool) ([][]byte, error) {
	sink, err := q.sinkFor(ctx, partition)
	if err != nil {
		return nil, err
	}
	ch := sink.Subscribe()

	var out [][]byte
	if block && len(out) == 0 {
		select {
		case evt, ok := <-ch:
			if ok {
				out = append(out, evt.Payload)
				if err := sink.Ack(ctx, evt); err != nil {
					return out, fmt.Errorf("pulsequeue: ack: %w", err)
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for len(out) < max {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out, nil
			}
			out = append(out, evt.Payload)
			if err := sink.Ack(ctx, evt); err != nil {
				return out, fmt.Errorf("pulsequeue: ack: %w", err)
			}
		default:
			return out, nil
		}
	}
	return out, nil
}

// Clear destroys and forgets every stream this queue has opened, so a
// subsequent PutMany/GetMany reopens clean streams.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var firstErr error
	for name, s := range q.streams {
		if err := s.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pulsequeue: destroy %q: %w", name, err)
		}
	}
	q.streams = make(map[string]*streaming.Stream)
	q.sinks = make(map[string]*streaming.Sink)
	return firstErr
}
