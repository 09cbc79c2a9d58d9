// Package memqueue is an in-process implementation of sendto.Queue backed
// by a mutex and a condition variable per partition. It's the default
// queue for single-process drivers and for tests; for genuine
// cross-process delivery use sendto/pulsequeue.
package memqueue

import (
	"context"
	"sync"
)

type partition struct {
	mu     sync.Mutex
	cond   *sync.Cond
	values [][]byte
}

func newPartition() *partition {
	p := &partition{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *partition) put(values [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, values...)
	p.cond.Broadcast()
}

// get returns the values available (possibly none, in non-blocking mode),
// plus whether a blocking wait was interrupted by done firing before any
// value arrived. Callers must only treat the wait as failed when
// interrupted is true — a non-blocking call that simply found nothing yet
// is not a failure.
func (p *partition) get(max int, block bool, done <-chan struct{}) (out [][]byte, interrupted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if block {
		for len(p.values) == 0 {
			// sync.Cond has no context-aware wait, so we watch done in a
			// helper goroutine and broadcast to unblock Wait when it fires.
			unblocked := make(chan struct{})
			go func() {
				select {
				case <-done:
					// Taking the lock ensures the waiter is already
					// inside Wait, so the broadcast cannot be missed.
					p.mu.Lock()
					p.cond.Broadcast()
					p.mu.Unlock()
				case <-unblocked:
				}
			}()
			p.cond.Wait()
			close(unblocked)
			select {
			case <-done:
				return nil, true
			default:
			}
		}
	}

	if len(p.values) == 0 {
		return nil, false
	}
	n := max
	if n > len(p.values) || n <= 0 {
		n = len(p.values)
	}
	out = p.values[:n]
	p.values = p.values[n:]
	return out, false
}

func (p *partition) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = nil
}

// Queue is an in-process, in-memory sendto.Queue.
type Queue struct {
	mu         sync.Mutex
	partitions map[string]*partition
}

// New constructs an empty in-memory queue.
func New() *Queue {
	return &Queue{partitions: make(map[string]*partition)}
}

func (q *Queue) partitionFor(name string) *partition {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.partitions[name]
	if !ok {
		p = newPartition()
		q.partitions[name] = p
	}
	return p
}

// PutMany implements sendto.Queue.
func (q *Queue) PutMany(ctx context.Context, partition string, values [][]byte) error {
	q.partitionFor(partition).put(values)
	return nil
}

// GetMany implements sendto.Queue. It only reports an error when a
// blocking wait was interrupted by ctx before any value arrived — a
// non-blocking call that simply found the partition empty returns a nil
// slice and a nil error, even if ctx happens to already be done, so a
// caller that successfully drained values is never made to discard them.
func (q *Queue) GetMany(ctx context.Context, partitionName string, max int, block bool) ([][]byte, error) {
	values, interrupted := q.partitionFor(partitionName).get(max, block, ctx.Done())
	if interrupted {
		return nil, ctx.Err()
	}
	return values, nil
}

// Clear implements sendto.Queue.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	parts := make([]*partition, 0, len(q.partitions))
	for _, p := range q.partitions {
		parts = append(parts, p)
	}
	q.mu.Unlock()
	for _, p := range parts {
		p.clear()
	}
	return nil
}
