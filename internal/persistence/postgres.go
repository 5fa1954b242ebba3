package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// PostgresStore implements Store against the fixed sidecar schema, using
// INSERT ... ON CONFLICT DO NOTHING for append-only tables and an explicit
// upsert for the session row, which is the only table with an UPDATE path
// (session.finished_at and its aggregate counts).
type PostgresStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPostgresStore wraps an open connection as a Store.
func NewPostgresStore(conn *Connection, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{conn: conn, logger: logger}
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// isDuplicate reports whether err is a unique-constraint violation (Postgres
// code 23505), the signal that a retried batch already wrote this row.
func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func (s *PostgresStore) UpsertSessionStart(ctx context.Context, rec SessionRecord) (bool, bool, error) {
	const query = `
		INSERT INTO session (run_id, framework, product_name, application_version, environment, started_at, total_tests)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`

	result, err := s.conn.ExecContext(ctx, query,
		rec.RunID, rec.Framework, rec.ProductName, rec.ApplicationVersion, rec.Environment, rec.StartedAt, rec.TotalTests)
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_start: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_start: %w", err)
	}

	return affected > 0, affected == 0, nil
}

func (s *PostgresStore) UpsertSessionFinish(ctx context.Context, rec SessionRecord) (bool, bool, error) {
	const updateQuery = `
		UPDATE session
		SET finished_at = $2, total_tests = $3, passed = $4, failed = $5
		WHERE run_id = $1
	`

	result, err := s.conn.ExecContext(ctx, updateQuery, rec.RunID, rec.FinishedAt, rec.TotalTests, rec.Passed, rec.Failed)
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_finish: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_finish: %w", err)
	}
	if affected > 0 {
		return true, false, nil
	}

	// Orphaned session_finish: no matching session_start observed. §3
	// permits this; synthesize a row with started_at = finished_at.
	const insertQuery = `
		INSERT INTO session (run_id, framework, started_at, finished_at, total_tests, passed, failed)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO NOTHING
	`

	result, err = s.conn.ExecContext(ctx, insertQuery,
		rec.RunID, rec.Framework, rec.FinishedAt, rec.TotalTests, rec.Passed, rec.Failed)
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_finish synthesize: %w", err)
	}

	affected, err = result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: session_finish synthesize: %w", err)
	}

	return affected > 0, affected == 0, nil
}

func (s *PostgresStore) InsertTestExecution(ctx context.Context, rec TestExecutionRecord) (bool, bool, error) {
	const query = `
		INSERT INTO test_execution (
			test_id, test_name, framework, status, duration_ms, executed_at,
			error_signature, error_message, retry_count, run_id, environment, build_id, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (test_id, run_id, executed_at) DO NOTHING
	`

	result, err := s.conn.ExecContext(ctx, query,
		rec.TestID, rec.TestName, rec.Framework, rec.Status, rec.DurationMs, rec.ExecutedAt,
		nullIfEmpty(rec.ErrorSignature), nullIfEmpty(rec.ErrorMessage), rec.RetryCount, rec.RunID,
		rec.Environment, rec.BuildID, pq.Array(rec.Tags))
	if err != nil {
		if isDuplicate(err) {
			return false, true, nil
		}
		return false, false, fmt.Errorf("persistence: test_execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: test_execution: %w", err)
	}

	return affected > 0, affected == 0, nil
}

func (s *PostgresStore) InsertStepExecution(ctx context.Context, rec StepExecutionRecord) (bool, bool, error) {
	const query = `
		INSERT INTO step_execution (
			step_id, scenario_id, test_id, step_text, step_index, status, duration_ms,
			executed_at, error_signature, error_message, framework, retry_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (step_id, test_id, executed_at) DO NOTHING
	`

	result, err := s.conn.ExecContext(ctx, query,
		rec.StepID, rec.ScenarioID, rec.TestID, rec.StepText, rec.StepIndex, rec.Status, rec.DurationMs,
		rec.ExecutedAt, nullIfEmpty(rec.ErrorSignature), nullIfEmpty(rec.ErrorMessage), rec.Framework, rec.RetryCount)
	if err != nil {
		if isDuplicate(err) {
			return false, true, nil
		}
		return false, false, fmt.Errorf("persistence: step_execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: step_execution: %w", err)
	}

	return affected > 0, affected == 0, nil
}

func (s *PostgresStore) InsertHTTPCall(ctx context.Context, rec HTTPCallRecord) (bool, bool, error) {
	const query = `
		INSERT INTO http_call (test_id, method, endpoint_path, status_code, duration_ms, success, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (test_id, endpoint_path, timestamp) DO NOTHING
	`

	result, err := s.conn.ExecContext(ctx, query,
		rec.TestID, rec.Method, rec.EndpointPath, rec.StatusCode, rec.DurationMs, rec.Success, rec.Timestamp)
	if err != nil {
		if isDuplicate(err) {
			return false, true, nil
		}
		return false, false, fmt.Errorf("persistence: http_call: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("persistence: http_call: %w", err)
	}

	return affected > 0, affected == 0, nil
}

func (s *PostgresStore) InsertRawEvent(ctx context.Context, rec RawEventRecord) (bool, bool, error) {
	const query = `
		INSERT INTO sidecar_raw_event (event_type, run_id, test_id, payload)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.conn.ExecContext(ctx, query, rec.EventType, nullIfEmpty(rec.RunID), nullIfEmpty(rec.TestID), rec.Payload)
	if err != nil {
		return false, false, fmt.Errorf("persistence: sidecar_raw_event: %w", err)
	}

	return true, false, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
