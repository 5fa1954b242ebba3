package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sidecar-io/sidecar/internal/config"
	"github.com/testcontainers/testcontainers-go"
)

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	ctx := context.Background()
	db := config.SetupTestDatabase(ctx, t)
	t.Cleanup(func() {
		_ = db.Connection.Close()
		_ = testcontainers.TerminateContainer(db.Container)
	})

	return NewPostgresStore(&Connection{db.Connection}, nil)
}

func TestPostgresStore_SessionStartThenFinish(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stored, duplicate, err := store.UpsertSessionStart(ctx, SessionRecord{
		RunID: "R1", Framework: "pytest", StartedAt: now,
	})
	require.NoError(t, err)
	require.True(t, stored)
	require.False(t, duplicate)

	finishedAt := now.Add(time.Second)
	total, passed, failed := 1, 1, 0
	stored, duplicate, err = store.UpsertSessionFinish(ctx, SessionRecord{
		RunID: "R1", FinishedAt: &finishedAt, TotalTests: &total, Passed: &passed, Failed: &failed,
	})
	require.NoError(t, err)
	require.True(t, stored)
	require.False(t, duplicate)
}

func TestPostgresStore_SessionFinishWithoutStartSynthesizesRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	total, passed, failed := 2, 1, 1

	stored, duplicate, err := store.UpsertSessionFinish(ctx, SessionRecord{
		RunID: "orphan", Framework: "pytest", FinishedAt: &now, TotalTests: &total, Passed: &passed, Failed: &failed,
	})
	require.NoError(t, err)
	require.True(t, stored)
	require.False(t, duplicate)
}

func TestPostgresStore_TestExecutionDuplicateIsSwallowed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := store.UpsertSessionStart(ctx, SessionRecord{RunID: "R2", Framework: "pytest", StartedAt: now})
	require.NoError(t, err)

	rec := TestExecutionRecord{
		TestID: "pytest::a.py::t1", TestName: "t1", Framework: "pytest",
		Status: "passed", ExecutedAt: now, RunID: "R2",
	}

	stored, duplicate, err := store.InsertTestExecution(ctx, rec)
	require.NoError(t, err)
	require.True(t, stored)
	require.False(t, duplicate)

	stored, duplicate, err = store.InsertTestExecution(ctx, rec)
	require.NoError(t, err)
	require.False(t, stored)
	require.True(t, duplicate)
}

func TestPostgresStore_HTTPCallInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stored, duplicate, err := store.InsertHTTPCall(ctx, HTTPCallRecord{
		TestID: "pytest::a.py::t1", Method: "GET", EndpointPath: "/users/{id}",
		StatusCode: 200, Success: true, Timestamp: now,
	})
	require.NoError(t, err)
	require.True(t, stored)
	require.False(t, duplicate)
}

func TestPostgresStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.HealthCheck(context.Background()))
}
