package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"creditmemo-backend/internal/bootstrap"
	"creditmemo-backend/internal/generation"
	"creditmemo-backend/internal/shared/config"
	"creditmemo-backend/internal/shared/metrics"
	"creditmemo-backend/internal/shared/telemetry"
	"creditmemo-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.BuildWithOptions(cfg, bootstrap.Options{SkipPool: true})
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	return processRecords(ctx, app.Generation, event.Records), nil
}

// processRecords reports only retryable failures back to SQS. Malformed
// messages are dropped so they do not cycle until the redrive limit.
func processRecords(ctx context.Context, processor generation.JobProcessor, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncGenerationJobsReceived()
		err := workerproc.HandleMessage(ctx, processor, record.Body)
		switch {
		case err == nil:
			metrics.IncGenerationJobsCompleted()
		case workerproc.Unrecoverable(err):
			meta := workerproc.ComputeMeta(record.Body)
			telemetry.Error("worker.generation.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"body_len":       meta.BodyLen,
				"body_sha256":    meta.BodySHA,
				"error":          err.Error(),
			})
			metrics.IncGenerationJobsDeletedUnrecoverable()
		default:
			telemetry.Error("worker.generation.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncGenerationJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
