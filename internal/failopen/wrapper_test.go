package failopen

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestGuard() (*Guard, *prometheus.CounterVec) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_errors_total"}, []string{"operation"})
	return New(slog.Default(), counter), counter
}

func TestGuard_Run_SwallowsError(t *testing.T) {
	g, counter := newTestGuard()

	assert.NotPanics(t, func() {
		g.Run("persist", func() error {
			return errors.New("boom")
		})
	})
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("persist")), 1e-9)
}

func TestGuard_Run_SwallowsPanic(t *testing.T) {
	g, counter := newTestGuard()

	assert.NotPanics(t, func() {
		g.Run("sample", func() error {
			panic("unexpected")
		})
	})
	assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("sample")), 1e-9)
}

func TestGuard_Run_SuccessDoesNotIncrementCounter(t *testing.T) {
	g, counter := newTestGuard()

	g.Run("enqueue", func() error { return nil })

	assert.InDelta(t, 0, testutil.ToFloat64(counter.WithLabelValues("enqueue")), 1e-9)
}

func TestValue_ReturnsZeroOnError(t *testing.T) {
	g, _ := newTestGuard()

	result := Value(g, "lookup", func() (int, error) {
		return 42, errors.New("boom")
	})

	assert.Equal(t, 0, result)
}

func TestValue_ReturnsResultOnSuccess(t *testing.T) {
	g, _ := newTestGuard()

	result := Value(g, "lookup", func() (int, error) {
		return 42, nil
	})

	assert.Equal(t, 42, result)
}

func TestValue_ReturnsZeroOnPanic(t *testing.T) {
	g, _ := newTestGuard()

	result := Value(g, "lookup", func() (string, error) {
		panic("boom")
	})

	assert.Equal(t, "", result)
}
