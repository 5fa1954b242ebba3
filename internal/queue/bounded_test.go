package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sidecar-io/sidecar/internal/events"
)

func TestBounded_TryPutSucceedsUntilCapacity(t *testing.T) {
	q := New(2)

	assert.True(t, q.TryPut(events.Event{TestID: "a"}))
	assert.True(t, q.TryPut(events.Event{TestID: "b"}))
	assert.False(t, q.TryPut(events.Event{TestID: "c"}))
	assert.Equal(t, 2, q.Size())
}

func TestBounded_GetReturnsInFIFOOrder(t *testing.T) {
	q := New(4)
	q.TryPut(events.Event{TestID: "a"})
	q.TryPut(events.Event{TestID: "b"})

	first, ok := q.Get(time.Second)
	assert.True(t, ok)
	assert.Equal(t, "a", first.TestID)

	second, ok := q.Get(time.Second)
	assert.True(t, ok)
	assert.Equal(t, "b", second.TestID)
}

func TestBounded_GetTimesOutWhenEmpty(t *testing.T) {
	q := New(1)

	_, ok := q.Get(10 * time.Millisecond)

	assert.False(t, ok)
}

func TestBounded_UtilizationReflectsFillLevel(t *testing.T) {
	q := New(4)
	q.TryPut(events.Event{})
	q.TryPut(events.Event{})

	assert.InDelta(t, 0.5, q.Utilization(), 1e-9)
	assert.Equal(t, 4, q.Capacity())
}

func TestBounded_ConcurrentProducersNeverExceedCapacity(t *testing.T) {
	q := New(100)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.TryPut(events.Event{})
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, q.Size(), q.Capacity())
}
