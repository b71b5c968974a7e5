package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"creditmemo-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
	err     error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	err  error
	jobs []string
}

func (f *fakeProcessor) ProcessJob(ctx context.Context, jobID string) error {
	f.jobs = append(f.jobs, jobID)
	return f.err
}

func jobMessage(t *testing.T, id, receipt string, m queue.Message) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	svc := &fakeProcessor{}
	msg := jobMessage(t, "m1", "r1", queue.Message{JobID: "job-1", RequestID: "req-1"})

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(svc.jobs) != 1 || svc.jobs[0] != "job-1" {
		t.Fatalf("expected job-1 processed, got %v", svc.jobs)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	svc := &fakeProcessor{err: errors.New("boom")}
	msg := jobMessage(t, "m2", "r2", queue.Message{JobID: "job-2", RequestID: "req-2"})

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	svc := &fakeProcessor{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(svc.jobs) != 0 {
		t.Fatalf("expected no processing, got %v", svc.jobs)
	}
}

func TestWorkerDeletesMessageWithoutJobID(t *testing.T) {
	client := &fakeSQS{}
	svc := &fakeProcessor{}
	msg := jobMessage(t, "m4", "r4", queue.Message{RequestID: "req-4"})

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(svc.jobs) != 0 {
		t.Fatalf("expected no processing, got %v", svc.jobs)
	}
}

func TestWorkerKeepsMessageWhenDeleteFails(t *testing.T) {
	client := &fakeSQS{err: errors.New("throttled")}
	svc := &fakeProcessor{}
	msg := jobMessage(t, "m5", "r5", queue.Message{JobID: "job-5"})

	handleMessage(context.Background(), client, "queue", svc, msg)

	if len(svc.jobs) != 1 {
		t.Fatalf("expected processing, got %v", svc.jobs)
	}
	if len(client.deleted) != 0 {
		t.Fatalf("expected no recorded delete, got %d", len(client.deleted))
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
