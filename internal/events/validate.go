package events

import (
	"errors"
	"fmt"
)

// Validation errors (static sentinels for errors.Is checks). These are the
// InvalidEvent kind from the error taxonomy; callers count and drop, they
// never propagate.
var (
	ErrUnknownEventType = errors.New("unknown event_type")
	ErrMissingTestID    = errors.New("test_id is required for this event_type")
	ErrMissingRunID     = errors.New("run_id is required for this event_type")
	ErrMissingDataField = errors.New("required data field is missing")
)

// requiredDataFields lists the data keys each event type must carry,
// mirroring the per-type table in the external interface schema.
var requiredDataFields = map[Type][]string{
	TypeSessionFinish: {"num_total_tests", "num_passed_tests", "num_failed_tests", "elapsed_time"},
	TypeTestStart:     {"test_name"},
	TypeTestEnd:       {"test_name", "status", "elapsed_time"},
	TypeStepStart:     {"scenario_id", "step_text", "step_index"},
	TypeStepEnd:       {"scenario_id", "step_text", "step_index", "status", "elapsed_time"},
	TypeRequestStart:  {"method", "uri"},
	TypeRequestEnd:    {"method", "uri", "status_code", "duration_ms", "success"},
}

// Validate checks an Event against the invariants of §3/§4.1: event_type
// must be one of the closed set, test_id and run_id must be present when
// the event type requires them, and the type-specific required data fields
// must be present. It never mutates e.
func Validate(e *Event) error {
	if !e.EventType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}

	if e.EventType.RequiresTestID() && e.TestID == "" {
		return fmt.Errorf("%w: event_type=%s", ErrMissingTestID, e.EventType)
	}

	if e.EventType.RequiresRunID() && e.RunID == "" {
		return fmt.Errorf("%w: event_type=%s", ErrMissingRunID, e.EventType)
	}

	for _, field := range requiredDataFields[e.EventType] {
		if _, ok := e.Data[field]; !ok {
			return fmt.Errorf("%w: event_type=%s field=%s", ErrMissingDataField, e.EventType, field)
		}
	}

	if status, ok := e.Data["status"]; ok {
		if s, isStr := status.(string); isStr {
			if _, err := NormalizeStatus(s); err != nil {
				return fmt.Errorf("invalid data.status: %w", err)
			}
		}
	}

	return nil
}
