// Package ring implements a bounded, blocking producer/consumer queue
// with stop semantics, used to hand completed heaps to a consumer
// without heap allocation on the hot path, per spec §3/§4.9.
package ring

import (
	"sync"

	"github.com/lao19881213/spead2/pkg/errors"
)

// Ringbuffer is a bounded FIFO of capacity C with two states, open and
// stopped. Push blocks while full and not stopped; Pop blocks while
// empty and not stopped; both wake on Stop. The teacher's lock-free
// single-producer/single-consumer ring (pkg/util/ringbuffer.go) cannot
// express blocking wakeup on stop, so this uses a mutex and two
// condition variables instead, one per wait direction.
type Ringbuffer[T any] struct {
	mu        sync.Mutex
	notEmpty  sync.Cond
	notFull   sync.Cond
	buf       []T
	head, len int
	stopped   bool
}

// New constructs a Ringbuffer with the given capacity.
func New[T any](capacity int) *Ringbuffer[T] {
	r := &Ringbuffer[T]{buf: make([]T, capacity)}
	r.notEmpty.L = &r.mu
	r.notFull.L = &r.mu
	return r
}

// Push blocks until there is a free slot or the buffer is stopped. It
// returns errors.Stopped if the buffer was or became stopped before a
// slot was available.
func (r *Ringbuffer[T]) Push(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.len == len(r.buf) && !r.stopped {
		r.notFull.Wait()
	}
	if r.stopped {
		return errors.Stopped
	}
	tail := (r.head + r.len) % len(r.buf)
	r.buf[tail] = v
	r.len++
	r.notEmpty.Signal()
	return nil
}

// Pop blocks until an item is available or the buffer is empty and
// stopped. Once stopped, Pop continues to drain remaining items before
// returning errors.Stopped.
func (r *Ringbuffer[T]) Pop() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.len == 0 && !r.stopped {
		r.notEmpty.Wait()
	}
	var zero T
	if r.len == 0 {
		return zero, errors.Stopped
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.len--
	r.notFull.Signal()
	return v, nil
}

// Stop transitions the buffer to stopped and wakes every waiter.
// Idempotent.
func (r *Ringbuffer[T]) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.notEmpty.Broadcast()
	r.notFull.Broadcast()
}

// IsStopped reports whether Stop has been called.
func (r *Ringbuffer[T]) IsStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Len reports the number of items currently queued.
func (r *Ringbuffer[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len
}
