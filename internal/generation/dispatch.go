package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creditmemo-backend/internal/queue"
	"creditmemo-backend/internal/shared/telemetry"
)

const defaultPoolWorkers = 4

type poolItem struct {
	jobID     string
	requestID string
}

// Pool runs dispatched jobs on a fixed number of in-process workers.
type Pool struct {
	processor JobProcessor
	items     chan poolItem
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines that hand jobs to processor.
func NewPool(processor JobProcessor, workers int) *Pool {
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	p := &Pool{
		processor: processor,
		items:     make(chan poolItem, workers*16),
	}
	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	return p
}

// Dispatch queues a job. It blocks while the queue is full until ctx is done.
func (p *Pool) Dispatch(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.items <- poolItem{jobID: job.ID, requestID: requestIDFromContext(ctx)}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish or for ctx
// to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.items)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for item := range p.items {
		p.process(item)
	}
}

func (p *Pool) process(item poolItem) {
	ctx := WithRequestID(context.Background(), item.requestID)
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("generation.pool_panic", map[string]any{
				"request_id": item.requestID,
				"job_id":     item.jobID,
				"error":      fmt.Sprint(r),
			})
		}
	}()
	if err := p.processor.ProcessJob(ctx, item.jobID); err != nil {
		telemetry.Error("generation.pool_job_failed", map[string]any{
			"request_id": item.requestID,
			"job_id":     item.jobID,
			"error":      err,
		})
	}
}

// QueueDispatcher publishes jobs to a queue for out-of-process workers.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

// Dispatch sends a message naming the job.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now().UTC()
	}
	return d.Client.Send(ctx, queue.Message{
		JobID:      job.ID,
		RequestID:  requestIDFromContext(ctx),
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	})
}

var (
	_ Dispatcher = (*Pool)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)
