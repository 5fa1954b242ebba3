package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/health"
	"github.com/sidecar-io/sidecar/internal/metrics"
)

const (
	retryBaseInterval = 100 * time.Millisecond
	retryMultiplier   = 2.0
	retryMaxInterval  = 1 * time.Second
	retryMaxAttempts  = 1 // retried once per §4.4, then the batch is discarded
)

// Batcher accumulates events up to persistence.batch_size or
// persistence.batch_linger_ms, whichever comes first, then commits them
// as one batch per §4.4. The batch is not wrapped in a transaction: its
// events are written one at a time, so events written before a failing one
// stay stored, and a retry writes the whole batch again. A batch failure is retried once
// with exponential backoff; on second failure the whole batch is
// discarded and errors_total is incremented by the batch size.
type Batcher struct {
	snapshot *config.Snapshot
	store    Store
	mirror   *Mirror
	metrics  *metrics.Registry
	logger   *slog.Logger
	health   *health.Monitor

	buf []*events.Event
}

// NewBatcher constructs a Batcher writing through store and mirroring
// through mirror (mirror may be nil to disable Kafka mirroring). monitor
// may be nil; when set, every commit outcome feeds the rolling error
// window and unreachable-since tracking /health reads from.
func NewBatcher(
	snapshot *config.Snapshot,
	store Store,
	mirror *Mirror,
	reg *metrics.Registry,
	logger *slog.Logger,
	monitor *health.Monitor,
) *Batcher {
	return &Batcher{snapshot: snapshot, store: store, mirror: mirror, metrics: reg, logger: logger, health: monitor}
}

// Add appends e to the pending batch and reports whether the batch has
// reached persistence.batch_size and should be flushed now.
func (b *Batcher) Add(e *events.Event) bool {
	b.buf = append(b.buf, e)
	return len(b.buf) >= b.snapshot.Load().Persistence.BatchSize
}

// Pending reports the number of events waiting to be flushed.
func (b *Batcher) Pending() int {
	return len(b.buf)
}

// LingerElapsed reports whether persistence.batch_linger_ms has passed
// since since, the last flush (or batch start).
func (b *Batcher) LingerElapsed(since time.Time) bool {
	linger := time.Duration(b.snapshot.Load().Persistence.BatchLingerMs) * time.Millisecond
	return time.Since(since) >= linger
}

// Flush commits the pending batch and clears it, regardless of outcome.
func (b *Batcher) Flush(ctx context.Context) {
	if len(b.buf) == 0 {
		return
	}

	batch := b.buf
	b.buf = nil

	cfg := b.snapshot.Load().Persistence
	writeTimeout := time.Duration(cfg.WriteTimeoutMs) * time.Millisecond
	keepRaw := cfg.KeepRaw

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = retryBaseInterval
	boff.Multiplier = retryMultiplier
	boff.MaxInterval = retryMaxInterval
	retrying := backoff.WithMaxRetries(boff, retryMaxAttempts)

	err := backoff.Retry(func() error {
		return b.commit(ctx, batch, writeTimeout, keepRaw)
	}, retrying)

	if err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.WithLabelValues("persist").Add(float64(len(batch)))
		}
		if b.health != nil {
			b.health.RecordError()
		}
		if b.logger != nil {
			b.logger.Error("persistence batch discarded after retry",
				slog.String("sidecar_event", "sidecar_error"),
				slog.String("operation", "persist"),
				slog.Int("batch_size", len(batch)),
				slog.String("error_message", err.Error()),
			)
		}

		return
	}

	if b.health != nil {
		b.health.RecordSuccess()
	}
}

func (b *Batcher) commit(ctx context.Context, batch []*events.Event, writeTimeout time.Duration, keepRaw bool) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var lastErr error
	for _, e := range batch {
		result := Dispatch(writeCtx, b.store, e)

		switch {
		case result.Err != nil:
			lastErr = result.Err
			continue
		case result.Duplicate:
			if b.metrics != nil {
				b.metrics.EventsDropped.WithLabelValues("duplicate").Inc()
			}
			continue
		case result.Stored:
			if b.metrics != nil {
				b.metrics.EventsProcessed.Inc()
			}
			if b.mirror != nil {
				b.mirror.Publish(e)
			}
		}

		if keepRaw {
			b.persistRaw(writeCtx, e)
		}
	}

	return lastErr
}

func (b *Batcher) persistRaw(ctx context.Context, e *events.Event) {
	payload, err := RawPayload(e)
	if err != nil {
		return
	}

	_, _, _ = b.store.InsertRawEvent(ctx, RawEventRecord{
		EventType: string(e.EventType),
		RunID:     e.RunID,
		TestID:    e.TestID,
		Payload:   payload,
	})
}
