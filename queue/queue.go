// Package queue implements a bounded lock-free multi-producer
// multi-consumer ring buffer, a direct Go port of Dmitry Vyukov's bounded
// MPMC queue algorithm. Each slot carries its own sequence number so
// producers and consumers can claim slots via CAS on a shared tail/head
// counter without a single global lock.
package queue

import (
	"sync/atomic"

	"github.com/arloliu/tsdbcore/errs"
)

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Queue is a fixed-capacity lock-free MPMC ring buffer. The zero value is
// not usable; construct with New.
type Queue[T any] struct {
	capacity uint64
	slots    []slot[T]
	sink     PersistSink

	head atomic.Uint64
	tail atomic.Uint64
}

// PersistSink optionally spills items that don't fit in the in-memory ring
// to a backing store. Append is called with the marshaled item when the
// ring is full; Load replays previously spilled items, e.g. on process
// restart.
type PersistSink interface {
	Append(data []byte) error
	Load() ([][]byte, error)
}

// New creates a Queue with the given power-of-two-independent capacity
// (any positive capacity works; the algorithm uses modulo, not a bitmask,
// so capacity need not be a power of two).
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}

	q := &Queue[T]{
		capacity: uint64(capacity), //nolint:gosec
		slots:    make([]slot[T], capacity),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i)) //nolint:gosec
	}

	return q
}

// WithPersistSink attaches a spill-to-disk sink used by PushOrSpill.
func (q *Queue[T]) WithPersistSink(sink PersistSink) *Queue[T] {
	q.sink = sink

	return q
}

// Push attempts to enqueue item, returning errs.ErrQueueFull if the ring is
// at capacity. Push never spills to the persistence sink; PushOrSpill does.
func (q *Queue[T]) Push(item T) error {
	pos := q.tail.Load()
	for {
		s := &q.slots[pos%q.capacity]
		seq := s.seq.Load()
		diff := int64(seq) - int64(pos) //nolint:gosec

		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.val = item
				s.seq.Store(pos + 1)

				return nil
			}
		case diff < 0:
			return errs.ErrQueueFull
		default:
			pos = q.tail.Load()
		}
	}
}

// PushOrSpill enqueues item, falling back to the attached PersistSink when
// the ring is full. Returns errs.ErrQueueFull if the ring is full and no
// sink is attached, or if the sink itself fails.
func (q *Queue[T]) PushOrSpill(item T, marshal func(T) ([]byte, error)) error {
	err := q.Push(item)
	if err == nil || q.sink == nil || err != errs.ErrQueueFull {
		return err
	}

	data, merr := marshal(item)
	if merr != nil {
		return merr
	}
	if serr := q.sink.Append(data); serr != nil {
		return errs.ErrQueueFull
	}

	return nil
}

// Pop dequeues the oldest item. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	pos := q.head.Load()
	for {
		s := &q.slots[pos%q.capacity]
		seq := s.seq.Load()
		diff := int64(seq) - int64(pos+1) //nolint:gosec

		switch {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				item = s.val
				s.seq.Store(pos + q.capacity)

				return item, true
			}
		case diff < 0:
			var zero T

			return zero, false
		default:
			pos = q.head.Load()
		}
	}
}

// Len returns an approximate current size; under concurrent access this is
// a snapshot, not a linearizable count.
func (q *Queue[T]) Len() int {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail < head {
		return 0
	}

	return int(tail - head) //nolint:gosec
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int { return int(q.capacity) } //nolint:gosec

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

// Full reports whether the queue is at capacity.
func (q *Queue[T]) Full() bool { return q.Len() >= int(q.capacity) } //nolint:gosec
