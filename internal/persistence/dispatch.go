package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sidecar-io/sidecar/internal/canonicalization"
	"github.com/sidecar-io/sidecar/internal/events"
)

// Result reports what happened when a single event was dispatched: exactly
// one of stored/duplicate/skipped is true, or err is non-nil.
type Result struct {
	Stored    bool
	Duplicate bool
	Skipped   bool
	Err       error
}

// Dispatch writes one event to its event-type-specific table following
// §4.5: session_start/session_finish upsert the session row, test_end and
// step_end insert append-only rows, request_end inserts a normalized
// http_call row. test_start, step_start, request_start, log, and custom
// are not persisted directly; they are skipped here (log/custom may still
// be mirrored raw when keep_raw is set, handled by the caller).
func Dispatch(ctx context.Context, store Store, e *events.Event) Result {
	switch e.EventType {
	case events.TypeSessionStart:
		return writeSessionStart(ctx, store, e)
	case events.TypeSessionFinish:
		return writeSessionFinish(ctx, store, e)
	case events.TypeTestEnd:
		return writeTestEnd(ctx, store, e)
	case events.TypeStepEnd:
		return writeStepEnd(ctx, store, e)
	case events.TypeRequestEnd:
		return writeRequestEnd(ctx, store, e)
	default:
		return Result{Skipped: true}
	}
}

func intPtr(v int) *int { return &v }

func dataInt(e *events.Event, key string) (int, bool) {
	f, ok := e.DataFloat(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func dataBool(e *events.Event, key string) bool {
	v, ok := e.Data[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func dataStrings(e *events.Event, key string) []string {
	v, ok := e.Data[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func errorFields(e *events.Event) (signature, message string) {
	message = e.DataString("message")
	if message == "" {
		return "", ""
	}
	return canonicalization.ErrorSignature(message), message
}

func writeSessionStart(ctx context.Context, store Store, e *events.Event) Result {
	rec := SessionRecord{
		RunID:              e.RunID,
		Framework:          e.Framework,
		ProductName:        e.DataString("product_name"),
		ApplicationVersion: e.DataString("application_version"),
		Environment:        e.DataString("environment"),
		StartedAt:          e.Timestamp,
	}
	if total, ok := dataInt(e, "total_tests"); ok {
		rec.TotalTests = intPtr(total)
	}

	stored, duplicate, err := store.UpsertSessionStart(ctx, rec)
	return Result{Stored: stored, Duplicate: duplicate, Err: err}
}

func writeSessionFinish(ctx context.Context, store Store, e *events.Event) Result {
	total, _ := dataInt(e, "num_total_tests")
	passed, _ := dataInt(e, "num_passed_tests")
	failed, _ := dataInt(e, "num_failed_tests")

	rec := SessionRecord{
		RunID:      e.RunID,
		Framework:  e.Framework,
		FinishedAt: &e.Timestamp,
		TotalTests: intPtr(total),
		Passed:     intPtr(passed),
		Failed:     intPtr(failed),
	}

	stored, duplicate, err := store.UpsertSessionFinish(ctx, rec)
	return Result{Stored: stored, Duplicate: duplicate, Err: err}
}

func writeTestEnd(ctx context.Context, store Store, e *events.Event) Result {
	status, err := events.NormalizeStatus(e.DataString("status"))
	if err != nil {
		return Result{Err: fmt.Errorf("persistence: test_end: %w", err)}
	}

	signature, message := errorFields(e)

	rec := TestExecutionRecord{
		TestID:         e.TestID,
		TestName:       e.DataString("test_name"),
		Framework:      e.Framework,
		Status:         string(status),
		ExecutedAt:     e.Timestamp,
		ErrorSignature: signature,
		ErrorMessage:   message,
		RunID:          e.RunID,
		Environment:    e.DataString("environment"),
		BuildID:        e.DataString("build_id"),
		Tags:           dataStrings(e, "tags"),
	}
	if retry, ok := dataInt(e, "retry_count"); ok {
		rec.RetryCount = retry
	}
	if elapsed, ok := e.DataFloat("elapsed_time"); ok {
		rec.DurationMs = intPtr(int(elapsed * 1000))
	}

	stored, duplicate, err := store.InsertTestExecution(ctx, rec)
	return Result{Stored: stored, Duplicate: duplicate, Err: err}
}

func writeStepEnd(ctx context.Context, store Store, e *events.Event) Result {
	status, err := events.NormalizeStatus(e.DataString("status"))
	if err != nil {
		return Result{Err: fmt.Errorf("persistence: step_end: %w", err)}
	}

	signature, message := errorFields(e)
	stepIndex, _ := dataInt(e, "step_index")

	rec := StepExecutionRecord{
		StepID:         fmt.Sprintf("%s::%d", e.TestID, stepIndex),
		ScenarioID:     e.DataString("scenario_id"),
		TestID:         e.TestID,
		StepText:       e.DataString("step_text"),
		StepIndex:      stepIndex,
		Status:         string(status),
		ExecutedAt:     e.Timestamp,
		ErrorSignature: signature,
		ErrorMessage:   message,
		Framework:      e.Framework,
	}
	if retry, ok := dataInt(e, "retry_count"); ok {
		rec.RetryCount = retry
	}
	if elapsed, ok := e.DataFloat("elapsed_time"); ok {
		rec.DurationMs = intPtr(int(elapsed * 1000))
	}

	stored, duplicate, err := store.InsertStepExecution(ctx, rec)
	return Result{Stored: stored, Duplicate: duplicate, Err: err}
}

func writeRequestEnd(ctx context.Context, store Store, e *events.Event) Result {
	statusCode, _ := dataInt(e, "status_code")
	durationMs, hasDuration := dataInt(e, "duration_ms")

	rec := HTTPCallRecord{
		TestID:       e.TestID,
		Method:       e.DataString("method"),
		EndpointPath: canonicalization.EndpointPath(e.DataString("uri")),
		StatusCode:   statusCode,
		Success:      dataBool(e, "success"),
		Timestamp:    e.Timestamp,
	}
	if hasDuration {
		rec.DurationMs = intPtr(durationMs)
	}

	stored, duplicate, err := store.InsertHTTPCall(ctx, rec)
	return Result{Stored: stored, Duplicate: duplicate, Err: err}
}

// RawPayload marshals the event envelope for the sidecar_raw_event mirror.
func RawPayload(e *events.Event) ([]byte, error) {
	return json.Marshal(e)
}
