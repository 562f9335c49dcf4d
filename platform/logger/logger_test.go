package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestWithContextAddsTaskID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), TaskIDKey, "property:p1:UPDATE:5")
	log.WithContext(ctx).IndexOutcome("property", "p1", "UPDATE", 5, "applied")

	entry := decodeLine(t, &buf)
	if entry["task_id"] != "property:p1:UPDATE:5" {
		t.Fatalf("expected task_id, got %v", entry)
	}
	if entry["msg"] != "index_outcome" || entry["outcome"] != "applied" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestQueueError(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).QueueError("index.change.agent", 2, 8, errors.New("es down"))

	entry := decodeLine(t, &buf)
	if entry["level"] != "WARN" || entry["task_type"] != "index.change.agent" || entry["error"] != "es down" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["retried"] != float64(2) || entry["max_retry"] != float64(8) {
		t.Fatalf("unexpected retry fields %v", entry)
	}
}
