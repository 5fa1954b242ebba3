package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/metrics"
)

const mirrorWriteTimeout = 2 * time.Second

// Mirror best-effort publishes a copy of each record onto a Kafka topic as
// soon as the store reports it stored, while the rest of its batch may
// still be in progress or fail. It never affects the batch's
// success or failure and is never retried: a failed publish is logged and
// counted under errors_total{operation="kafka_mirror"}, nothing more.
type Mirror struct {
	writer  *kafka.Writer
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewMirror constructs a Mirror from the current Persistence config. It
// returns nil, meaning "disabled", when no brokers or topic are configured.
func NewMirror(snapshot *config.Snapshot, reg *metrics.Registry, logger *slog.Logger) *Mirror {
	cfg := snapshot.Load().Persistence
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		RequiredAcks: kafka.RequireNone,
	}

	return &Mirror{writer: writer, metrics: reg, logger: logger}
}

// Publish fires a best-effort mirror message keyed by the event's
// idempotency key, so downstream consumers can dedupe the same way the
// persistence layer does.
func (m *Mirror) Publish(e *events.Event) {
	if m == nil {
		return
	}

	payload, err := RawPayload(e)
	if err != nil {
		m.reportFailure(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.IdempotencyKey()),
		Value: payload,
	})
	if err != nil {
		m.reportFailure(err)
	}
}

func (m *Mirror) reportFailure(err error) {
	if m.metrics != nil {
		m.metrics.ErrorsTotal.WithLabelValues("kafka_mirror").Inc()
	}
	if m.logger != nil {
		m.logger.Warn("kafka mirror publish failed",
			slog.String("sidecar_event", "sidecar_error"),
			slog.String("operation", "kafka_mirror"),
			slog.String("error_message", err.Error()),
		)
	}
}

// Close closes the underlying Kafka writer, if any.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.writer.Close()
}
