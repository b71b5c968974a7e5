package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("generation.status", map[string]any{
		"job_id": "job-1",
		"error":  errors.New("boom"),
		"msg":    "ignored",
	})

	line := strings.TrimSpace(buf.String())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload["msg"] != "generation.status" {
		t.Fatalf("fields must not override msg, got %v", payload["msg"])
	}
	if payload["error"] != "boom" {
		t.Fatalf("expected error rendered as string, got %v", payload["error"])
	}
	if payload["job_id"] != "job-1" {
		t.Fatalf("unexpected job_id: %v", payload["job_id"])
	}
}
