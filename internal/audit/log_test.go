package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"mailpoint.org/internal/obs"
)

func TestRecord(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := WithRequestID(context.Background(), "req-123")

	err := Record(ctx, Event{
		ActorID:    "courier-7",
		Capability: "edit",
		TargetCode: "CS01A07",
		Outcome:    OutcomeDenied,
		Detail:     map[string]any{"reason": "prefix_mismatch"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["actor_id"] != "courier-7" {
		t.Fatalf("unexpected actor: %v", entry["actor_id"])
	}
	if entry["target_code"] != "CS01A07" {
		t.Fatalf("unexpected target: %v", entry["target_code"])
	}
	if entry["outcome"] != OutcomeDenied {
		t.Fatalf("unexpected outcome: %v", entry["outcome"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	detail, ok := entry["detail"].(map[string]any)
	if !ok || detail["reason"] != "prefix_mismatch" {
		t.Fatalf("unexpected detail: %v", entry["detail"])
	}
}

func TestRecordRequiresCapability(t *testing.T) {
	if err := Record(context.Background(), Event{ActorID: "x"}); err == nil {
		t.Fatal("expected error for missing capability")
	}
}
