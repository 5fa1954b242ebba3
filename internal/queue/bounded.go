// Package queue implements the single bounded in-memory buffer between the
// producer API and the worker pool.
package queue

import (
	"time"

	"github.com/sidecar-io/sidecar/internal/events"
)

// Bounded is a fixed-capacity FIFO over a buffered channel. It is the only
// buffering point in the pipeline: TryPut never blocks, and Get blocks only
// up to a caller-supplied timeout.
type Bounded struct {
	ch       chan events.Event
	capacity int
}

// New constructs a Bounded queue with the given capacity. Capacity must be
// positive; Config.Validate enforces this before a Bounded is ever built.
func New(capacity int) *Bounded {
	return &Bounded{
		ch:       make(chan events.Event, capacity),
		capacity: capacity,
	}
}

// TryPut attempts a non-blocking enqueue. It returns false immediately if
// the queue is at capacity — tail-drop: the new arrival is rejected, not an
// existing entry evicted — so head-of-line pairs like test_start/test_end
// already observed are never invalidated.
func (q *Bounded) TryPut(e events.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Get blocks up to timeout for the next event. It returns ok=false on
// timeout, letting workers re-check their shutdown signal without busy
// looping.
func (q *Bounded) Get(timeout time.Duration) (events.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-q.ch:
		return e, true
	case <-timer.C:
		return events.Event{}, false
	}
}

// Size returns the number of events currently buffered.
func (q *Bounded) Size() int {
	return len(q.ch)
}

// Capacity returns queue.max_size as configured when this queue was built.
// A running Bounded is never resized: a reloaded queue.max_size only takes
// effect in the queue built at the next process start.
func (q *Bounded) Capacity() int {
	return q.capacity
}

// Utilization returns Size()/Capacity() in [0,1].
func (q *Bounded) Utilization() float64 {
	if q.capacity == 0 {
		return 0
	}
	return float64(q.Size()) / float64(q.capacity)
}
