package persistence

import "context"

// Store defines the persistence operations the Worker Pool dispatches
// into, one per table in the fixed schema (§4.5/§6). Every Insert*/Upsert*
// method reports (stored, duplicate, err): duplicate is true when a unique
// constraint caught a retried batch, which is not an error — it is counted
// under events_dropped{reason="duplicate"} by the caller, never propagated.
type Store interface {
	UpsertSessionStart(ctx context.Context, rec SessionRecord) (stored bool, duplicate bool, err error)
	UpsertSessionFinish(ctx context.Context, rec SessionRecord) (stored bool, duplicate bool, err error)
	InsertTestExecution(ctx context.Context, rec TestExecutionRecord) (stored bool, duplicate bool, err error)
	InsertStepExecution(ctx context.Context, rec StepExecutionRecord) (stored bool, duplicate bool, err error)
	InsertHTTPCall(ctx context.Context, rec HTTPCallRecord) (stored bool, duplicate bool, err error)
	InsertRawEvent(ctx context.Context, rec RawEventRecord) (stored bool, duplicate bool, err error)
	HealthCheck(ctx context.Context) error
}
