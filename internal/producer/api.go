// Package producer implements the single entry point every observation
// passes through before reaching the bounded queue, whether submitted by
// an in-process caller or by the HTTP ingress.
package producer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/failopen"
	"github.com/sidecar-io/sidecar/internal/metrics"
	"github.com/sidecar-io/sidecar/internal/queue"
	"github.com/sidecar-io/sidecar/internal/sampler"
)

// errPutFailed is the Err surfaced on a submission the Guard caught a panic
// from; the caller sees a dropped-invalid event rather than a hung or
// propagated failure.
var errPutFailed = errors.New("producer: submission failed")

// Outcome reports what happened to a submitted event. Exactly one field
// is true.
type Outcome struct {
	Accepted         bool
	DroppedInvalid   bool
	DroppedSampled   bool
	DroppedQueueFull bool
	Err              error
}

// API validates, stamps, samples, and non-blockingly enqueues events. It
// never blocks a caller waiting for queue space.
type API struct {
	queue   *queue.Bounded
	sampler *sampler.Sampler
	metrics *metrics.Registry
	guard   *failopen.Guard
}

// New constructs a producer API over the given queue and sampler. guard
// wraps Put so a panic from validation, sampling, or the queue never
// reaches an in-process caller.
func New(q *queue.Bounded, s *sampler.Sampler, reg *metrics.Registry, guard *failopen.Guard) *API {
	return &API{queue: q, sampler: s, metrics: reg, guard: guard}
}

// Put validates e, fills a missing timestamp and (for session_start,
// the one event type allowed to omit it) a missing run_id, applies the
// Sampler, and attempts a non-blocking enqueue. It never panics and never
// blocks: a panic anywhere in this path is caught by the Guard and
// surfaced as a dropped-invalid Outcome instead of propagating to the
// caller, who may be the host test process itself.
func (a *API) Put(e events.Event) Outcome {
	outcome := Outcome{DroppedInvalid: true, Err: errPutFailed}

	a.guard.Run("producer_put", func() error {
		outcome = a.put(e)
		return nil
	})

	return outcome
}

func (a *API) put(e events.Event) Outcome {
	if err := events.Validate(&e); err != nil {
		if a.metrics != nil {
			a.metrics.EventsDropped.WithLabelValues("invalid").Inc()
		}
		return Outcome{DroppedInvalid: true, Err: err}
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if e.RunID == "" {
		e.RunID = uuid.NewString()
	}

	if !a.sampler.ShouldSample(categoryFor(e.EventType)) {
		if a.metrics != nil {
			a.metrics.EventsSampled.Inc()
		}
		return Outcome{DroppedSampled: true}
	}

	if !a.queue.TryPut(e) {
		if a.metrics != nil {
			a.metrics.EventsDropped.WithLabelValues("queue_full").Inc()
		}
		return Outcome{DroppedQueueFull: true}
	}

	if a.metrics != nil {
		a.metrics.EventsQueued.WithLabelValues(string(e.EventType)).Inc()
	}

	return Outcome{Accepted: true}
}

func categoryFor(t events.Type) sampler.Category {
	if t == events.TypeLog {
		return sampler.CategoryLogs
	}
	return sampler.CategoryEvents
}
