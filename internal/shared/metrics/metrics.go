package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	generationStartedTotal   atomic.Uint64
	generationCompletedTotal atomic.Uint64
	generationFailedTotal    atomic.Uint64

	generationJobsReceivedTotal             atomic.Uint64
	generationJobsCompletedTotal            atomic.Uint64
	generationJobsFailedTotal               atomic.Uint64
	generationJobsDeletedUnrecoverableTotal atomic.Uint64

	extractionCompletedTotal atomic.Uint64
	extractionFailedTotal    atomic.Uint64

	generationDuration = newHistogram([]float64{500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncGenerationStarted increments the started counter.
func IncGenerationStarted() {
	generationStartedTotal.Add(1)
}

// IncGenerationCompleted increments the completed counter.
func IncGenerationCompleted() {
	generationCompletedTotal.Add(1)
}

// IncGenerationFailed increments the failed counter.
func IncGenerationFailed() {
	generationFailedTotal.Add(1)
}

// IncGenerationJobsReceived counts queue messages picked up by a worker.
func IncGenerationJobsReceived() {
	generationJobsReceivedTotal.Add(1)
}

// IncGenerationJobsCompleted counts queue messages processed and deleted.
func IncGenerationJobsCompleted() {
	generationJobsCompletedTotal.Add(1)
}

// IncGenerationJobsFailed counts queue messages left for redelivery.
func IncGenerationJobsFailed() {
	generationJobsFailedTotal.Add(1)
}

// IncGenerationJobsDeletedUnrecoverable counts malformed messages dropped from the queue.
func IncGenerationJobsDeletedUnrecoverable() {
	generationJobsDeletedUnrecoverableTotal.Add(1)
}

// IncExtractionCompleted increments the extraction success counter.
func IncExtractionCompleted() {
	extractionCompletedTotal.Add(1)
}

// IncExtractionFailed increments the extraction failure counter.
func IncExtractionFailed() {
	extractionFailedTotal.Add(1)
}

// ObserveGenerationDurationMs records a generation duration in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "generation_started_total", "Total memo generations started", generationStartedTotal.Load())
	writeCounter(&buf, "generation_completed_total", "Total memo generations completed", generationCompletedTotal.Load())
	writeCounter(&buf, "generation_failed_total", "Total memo generations failed", generationFailedTotal.Load())
	writeCounter(&buf, "generation_jobs_received_total", "Queue messages received by workers", generationJobsReceivedTotal.Load())
	writeCounter(&buf, "generation_jobs_completed_total", "Queue messages processed and deleted", generationJobsCompletedTotal.Load())
	writeCounter(&buf, "generation_jobs_failed_total", "Queue messages left for redelivery", generationJobsFailedTotal.Load())
	writeCounter(&buf, "generation_jobs_deleted_unrecoverable_total", "Malformed queue messages deleted", generationJobsDeletedUnrecoverableTotal.Load())
	writeCounter(&buf, "extraction_completed_total", "Documents extracted", extractionCompletedTotal.Load())
	writeCounter(&buf, "extraction_failed_total", "Document extractions failed", extractionFailedTotal.Load())
	writeHistogram(&buf, "generation_duration_ms", "Memo generation duration in milliseconds", generationDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
