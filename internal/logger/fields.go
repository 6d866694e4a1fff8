package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried in the context through the call chain.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldActorID   = "actor_id"
	FieldComponent = "component"
	FieldTaskID    = "task_id"
)

// Metric fields, attached per log line through the Entry API.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
)
