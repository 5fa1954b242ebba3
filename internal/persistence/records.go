package persistence

import "time"

// SessionRecord mirrors the session table.
type SessionRecord struct {
	RunID              string
	Framework          string
	ProductName        string
	ApplicationVersion string
	Environment        string
	StartedAt          time.Time
	FinishedAt         *time.Time
	TotalTests         *int
	Passed             *int
	Failed             *int
}

// TestExecutionRecord mirrors the test_execution table.
type TestExecutionRecord struct {
	TestID         string
	TestName       string
	Framework      string
	Status         string
	DurationMs     *int
	ExecutedAt     time.Time
	ErrorSignature string
	ErrorMessage   string
	RetryCount     int
	RunID          string
	Environment    string
	BuildID        string
	Tags           []string
}

// StepExecutionRecord mirrors the step_execution table.
type StepExecutionRecord struct {
	StepID         string
	ScenarioID     string
	TestID         string
	StepText       string
	StepIndex      int
	Status         string
	DurationMs     *int
	ExecutedAt     time.Time
	ErrorSignature string
	ErrorMessage   string
	Framework      string
	RetryCount     int
}

// HTTPCallRecord mirrors the http_call table.
type HTTPCallRecord struct {
	TestID       string
	Method       string
	EndpointPath string
	StatusCode   int
	DurationMs   *int
	Success      bool
	Timestamp    time.Time
}

// RawEventRecord mirrors the optional sidecar_raw_event table, populated
// only when persistence.keep_raw is set.
type RawEventRecord struct {
	EventType string
	RunID     string
	TestID    string
	Payload   []byte
}
