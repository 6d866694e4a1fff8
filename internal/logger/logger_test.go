package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	return line
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetComponent(ctx, "orchestrator")

	CtxInfo(ctx, "job %s started", "job-1")

	line := decodeLine(t, &buf)
	if line["job_id"] != "job-1" {
		t.Errorf("expected job_id field, got %v", line["job_id"])
	}
	if line["component"] != "orchestrator" {
		t.Errorf("expected component field, got %v", line["component"])
	}
	if line["message"] != "job job-1 started" {
		t.Errorf("unexpected message %v", line["message"])
	}
	if line["service"] != "test" {
		t.Errorf("expected service field, got %v", line["service"])
	}
	if GetJobID(ctx) != "job-1" {
		t.Errorf("GetJobID() = %q", GetJobID(ctx))
	}
}

func TestEntryAddsMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldStatus: "completed"}).WithDuration(42).WithCount(3).Info(ctx, "done")

	line := decodeLine(t, &buf)
	if line[FieldDurationMs] != float64(42) {
		t.Errorf("expected duration_ms 42, got %v", line[FieldDurationMs])
	}
	if line[FieldCount] != float64(3) {
		t.Errorf("expected count 3, got %v", line[FieldCount])
	}
	if line[FieldStatus] != "completed" {
		t.Errorf("expected status completed, got %v", line[FieldStatus])
	}
}

func TestDetachKeepsLoggerDropsCancellation(t *testing.T) {
	var buf bytes.Buffer
	parent, cancel := context.WithCancel(newBufferLogger(&buf).WithContext(context.Background()))
	parent = SetRequestID(parent, "req-9")
	cancel()

	detached := Detach(parent)
	if detached.Err() != nil {
		t.Fatal("detached context must not be canceled")
	}
	if GetRequestID(detached) != "req-9" {
		t.Errorf("expected request id to survive, got %q", GetRequestID(detached))
	}
}
