package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"creditmemo-backend/internal/queue"
)

type fakeProcessor struct {
	failFor map[string]bool
}

func (f fakeProcessor) ProcessJob(ctx context.Context, jobID string) error {
	if f.failFor[jobID] {
		return errors.New("boom")
	}
	return nil
}

func body(t *testing.T, jobID string) string {
	t.Helper()
	raw, err := queue.EncodeMessage(queue.Message{JobID: jobID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestProcessRecordsReportsOnlyRetryableFailures(t *testing.T) {
	records := []events.SQSMessage{
		{MessageId: "ok", Body: body(t, "job-ok")},
		{MessageId: "bad-json", Body: "{nope"},
		{MessageId: "empty", Body: ""},
		{MessageId: "fails", Body: body(t, "job-fail")},
	}

	resp := processRecords(context.Background(), fakeProcessor{failFor: map[string]bool{"job-fail": true}}, records)

	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "fails" {
		t.Fatalf("unexpected failure id %q", resp.BatchItemFailures[0].ItemIdentifier)
	}
}
