package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	assert.True(t, TypeTestEnd.IsValid())
	assert.False(t, Type("bogus").IsValid())
}

func TestType_RequiresTestID(t *testing.T) {
	assert.True(t, TypeTestEnd.RequiresTestID())
	assert.True(t, TypeRequestEnd.RequiresTestID())
	assert.False(t, TypeSessionStart.RequiresTestID())
	assert.False(t, TypeSessionFinish.RequiresTestID())
}

func TestType_RequiresRunID(t *testing.T) {
	assert.False(t, TypeSessionStart.RequiresRunID())
	assert.True(t, TypeSessionFinish.RequiresRunID())
	assert.True(t, TypeTestEnd.RequiresRunID())
}

func TestEvent_IdempotencyKey_StableForIdenticalEvents(t *testing.T) {
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	e1 := Event{EventType: TypeTestEnd, Framework: "pytest", RunID: "R1", TestID: "t1", Timestamp: ts}
	e2 := Event{EventType: TypeTestEnd, Framework: "pytest", RunID: "R1", TestID: "t1", Timestamp: ts}

	assert.Equal(t, e1.IdempotencyKey(), e2.IdempotencyKey())
	assert.Len(t, e1.IdempotencyKey(), 64)
}

func TestEvent_IdempotencyKey_DiffersOnAnyField(t *testing.T) {
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	base := Event{EventType: TypeTestEnd, Framework: "pytest", RunID: "R1", TestID: "t1", Timestamp: ts}
	variant := base
	variant.TestID = "t2"

	assert.NotEqual(t, base.IdempotencyKey(), variant.IdempotencyKey())
}

func TestEvent_DataString_MissingReturnsEmpty(t *testing.T) {
	e := Event{}
	assert.Equal(t, "", e.DataString("test_name"))
}

func TestEvent_DataFloat_AcceptsFloatAndInt(t *testing.T) {
	e := Event{Data: map[string]interface{}{"elapsed_time": 1.2, "count": 3}}

	f, ok := e.DataFloat("elapsed_time")
	assert.True(t, ok)
	assert.InDelta(t, 1.2, f, 1e-9)

	n, ok := e.DataFloat("count")
	assert.True(t, ok)
	assert.InDelta(t, 3, n, 1e-9)

	_, ok = e.DataFloat("missing")
	assert.False(t, ok)
}
