package producer

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/failopen"
	"github.com/sidecar-io/sidecar/internal/metrics"
	"github.com/sidecar-io/sidecar/internal/queue"
	"github.com/sidecar-io/sidecar/internal/sampler"
)

func newTestAPI(t *testing.T, cfg config.Config) (*API, *queue.Bounded) {
	t.Helper()
	snap := config.NewSnapshot(cfg)
	q := queue.New(cfg.Queue.MaxSize)
	s := sampler.New(snap)
	reg := metrics.New()
	guard := failopen.New(slog.Default(), reg.ErrorsTotal)
	return New(q, s, reg, guard), q
}

func sessionStartEvent() events.Event {
	return events.Event{
		EventType: events.TypeSessionStart,
		Framework: "pytest",
		RunID:     "R1",
	}
}

func TestAPI_Put_AcceptsValidEventAndFillsTimestamp(t *testing.T) {
	cfg := config.Default()
	cfg.Sampling.Rates.Events = 1.0
	api, q := newTestAPI(t, cfg)

	outcome := api.Put(sessionStartEvent())
	require.True(t, outcome.Accepted)

	e, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.False(t, e.Timestamp.IsZero())
}

func TestAPI_Put_AssignsRunIDWhenSessionStartOmitsIt(t *testing.T) {
	cfg := config.Default()
	cfg.Sampling.Rates.Events = 1.0
	api, q := newTestAPI(t, cfg)

	e := sessionStartEvent()
	e.RunID = ""

	require.True(t, api.Put(e).Accepted)

	got, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.NotEmpty(t, got.RunID)
}

func TestAPI_Put_DropsInvalidEvent(t *testing.T) {
	cfg := config.Default()
	api, _ := newTestAPI(t, cfg)

	outcome := api.Put(events.Event{EventType: "not_a_real_type"})
	assert.True(t, outcome.DroppedInvalid)
	assert.Error(t, outcome.Err)
}

func TestAPI_Put_DropsSampledOutEvent(t *testing.T) {
	cfg := config.Default()
	cfg.Sampling.Rates.Events = 0.0
	api, _ := newTestAPI(t, cfg)

	outcome := api.Put(sessionStartEvent())
	assert.True(t, outcome.DroppedSampled)
}

func TestAPI_Put_DropsOnQueueFull(t *testing.T) {
	cfg := config.Default()
	cfg.Sampling.Rates.Events = 1.0
	cfg.Queue.MaxSize = 1
	api, _ := newTestAPI(t, cfg)

	require.True(t, api.Put(sessionStartEvent()).Accepted)

	outcome := api.Put(sessionStartEvent())
	assert.True(t, outcome.DroppedQueueFull)
}
