package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/sidecar-io/sidecar/internal/events"
	"github.com/sidecar-io/sidecar/internal/health"
	"github.com/sidecar-io/sidecar/internal/metrics"
)

type fakeStore struct {
	testExecutions []TestExecutionRecord
	duplicateNext  bool
	failNext       bool
}

func (f *fakeStore) UpsertSessionStart(context.Context, SessionRecord) (bool, bool, error) {
	return true, false, nil
}

func (f *fakeStore) UpsertSessionFinish(context.Context, SessionRecord) (bool, bool, error) {
	return true, false, nil
}

func (f *fakeStore) InsertTestExecution(_ context.Context, rec TestExecutionRecord) (bool, bool, error) {
	if f.failNext {
		return false, false, errors.New("boom")
	}
	if f.duplicateNext {
		return false, true, nil
	}
	f.testExecutions = append(f.testExecutions, rec)
	return true, false, nil
}

func (f *fakeStore) InsertStepExecution(context.Context, StepExecutionRecord) (bool, bool, error) {
	return true, false, nil
}

func (f *fakeStore) InsertHTTPCall(context.Context, HTTPCallRecord) (bool, bool, error) {
	return true, false, nil
}

func (f *fakeStore) InsertRawEvent(context.Context, RawEventRecord) (bool, bool, error) {
	return true, false, nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }

func testEndEvent(testID, runID string) *events.Event {
	return &events.Event{
		EventType: events.TypeTestEnd,
		Framework: "pytest",
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		TestID:    testID,
		Data: map[string]interface{}{
			"test_name":    "t1",
			"status":       "PASS",
			"elapsed_time": 1.2,
		},
	}
}

func TestBatcher_FlushesStoredEventsThroughDispatch(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.BatchSize = 64
	snapshot := config.NewSnapshot(cfg)

	store := &fakeStore{}
	b := NewBatcher(snapshot, store, nil, metrics.New(), nil, nil)

	b.Add(testEndEvent("t1", "R1"))
	b.Flush(context.Background())

	require.Len(t, store.testExecutions, 1)
	assert.Equal(t, "t1", store.testExecutions[0].TestID)
}

func TestBatcher_Add_ReportsBatchSizeReached(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.BatchSize = 2
	snapshot := config.NewSnapshot(cfg)

	b := NewBatcher(snapshot, &fakeStore{}, nil, metrics.New(), nil, nil)

	assert.False(t, b.Add(testEndEvent("t1", "R1")))
	assert.True(t, b.Add(testEndEvent("t2", "R1")))
}

func TestBatcher_DuplicateIncrementsDroppedMetric(t *testing.T) {
	cfg := config.Default()
	snapshot := config.NewSnapshot(cfg)

	reg := metrics.New()
	store := &fakeStore{duplicateNext: true}
	b := NewBatcher(snapshot, store, nil, reg, nil, nil)

	b.Add(testEndEvent("t1", "R1"))
	b.Flush(context.Background())

	assert.Empty(t, store.testExecutions)
	assert.InDelta(t, 1, testutil.ToFloat64(reg.EventsDropped.WithLabelValues("duplicate")), 1e-9)
}

func TestBatcher_FailureIncrementsErrorsTotalByBatchSize(t *testing.T) {
	cfg := config.Default()
	snapshot := config.NewSnapshot(cfg)

	reg := metrics.New()
	monitor := health.New()
	store := &fakeStore{failNext: true}
	b := NewBatcher(snapshot, store, nil, reg, nil, monitor)

	b.Add(testEndEvent("t1", "R1"))
	b.Add(testEndEvent("t2", "R1"))
	b.Flush(context.Background())

	assert.InDelta(t, 2, testutil.ToFloat64(reg.ErrorsTotal.WithLabelValues("persist")), 1e-9,
		"errors_total should count the whole discarded batch")
	assert.Equal(t, 1, monitor.ErrorsLastMinute())
	assert.Greater(t, monitor.UnreachableFor(), time.Duration(0))
}
