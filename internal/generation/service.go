package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creditmemo-backend/internal/documents"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/llm"
	"creditmemo-backend/internal/memos"
	"creditmemo-backend/internal/shared/metrics"
	"creditmemo-backend/internal/shared/telemetry"
)

// DocumentSource loads documents and their extracted text.
type DocumentSource interface {
	Get(ctx context.Context, id string) (documents.Document, error)
	Text(ctx context.Context, doc documents.Document) (string, error)
}

// MemoWriter persists generated memos.
type MemoWriter interface {
	Create(ctx context.Context, in memos.CreateInput) (memos.Memo, error)
}

// MethodologySource resolves the methodology guiding a memo.
type MethodologySource interface {
	Methodology(ctx context.Context, id string) (library.Item, error)
}

// Generator resolves providers and writes memo content.
type Generator interface {
	Resolve(name string) (string, error)
	GenerateMemo(ctx context.Context, in llm.MemoInput) (llm.Memo, error)
}

// Dispatcher hands a persisted job to whatever runs it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// JobProcessor runs persisted jobs. Service implements it.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Service orchestrates memo generation.
type Service struct {
	Docs          DocumentSource
	Memos         MemoWriter
	Methodologies MethodologySource
	LLM           Generator
	Jobs          JobsRepo
	Dispatcher    Dispatcher
	Now           func() time.Time
}

type prepared struct {
	doc           documents.Document
	provider      string
	methodologyID string
	methodology   library.Item
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// prepare validates a request without calling the provider. Document state
// is checked before the provider name.
func (s *Service) prepare(ctx context.Context, req Request) (prepared, error) {
	if s.LLM == nil {
		return prepared{}, errors.New("llm router not configured")
	}
	doc, err := s.Docs.Get(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return prepared{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		return prepared{}, err
	}
	if !doc.HasExtractedData() {
		return prepared{}, fmt.Errorf("%w: document %s has no extracted financial data", ErrInvalidState, doc.ID)
	}
	provider, err := s.LLM.Resolve(req.Provider)
	if err != nil {
		return prepared{}, err
	}

	methodologyID := strings.TrimSpace(req.MethodologyID)
	methodology, err := s.Methodologies.Methodology(ctx, methodologyID)
	if err != nil {
		return prepared{}, fmt.Errorf("methodology %q: %w", methodologyID, err)
	}
	return prepared{doc: doc, provider: provider, methodologyID: methodologyID, methodology: methodology}, nil
}

// run calls the provider once and records the memo.
func (s *Service) run(ctx context.Context, p prepared) (memos.Memo, error) {
	text, err := s.Docs.Text(ctx, p.doc)
	if err != nil {
		return memos.Memo{}, fmt.Errorf("load document text: %w", err)
	}
	out, err := s.LLM.GenerateMemo(ctx, llm.MemoInput{
		Provider:     p.provider,
		CompanyName:  p.doc.CompanyName,
		DocumentText: text,
		Methodology:  p.methodology.Content,
		Financials:   p.doc.Financials,
	})
	if err != nil {
		return memos.Memo{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return s.Memos.Create(ctx, memos.CreateInput{
		DocumentID:    p.doc.ID,
		Provider:      out.Provider,
		Model:         out.Model,
		MethodologyID: p.methodologyID,
		Content:       out.Content,
	})
}

// Generate runs one generation synchronously and returns the new memo.
// Nothing is persisted unless the provider call succeeds.
func (s *Service) Generate(ctx context.Context, req Request) (memos.Memo, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return memos.Memo{}, err
	}

	startedAt := s.now()
	metrics.IncGenerationStarted()
	s.logStatus(ctx, "", p.doc.ID, p.provider, StatusRunning, "requested->running", 0)

	memo, err := s.run(ctx, p)
	completedAt := s.now()
	duration := durationMs(&startedAt, &completedAt)
	metrics.ObserveGenerationDurationMs(duration)
	if err != nil {
		metrics.IncGenerationFailed()
		telemetry.Error("generation.status", map[string]any{
			"request_id":        requestIDFromContext(ctx),
			"document_id":       p.doc.ID,
			"provider":          p.provider,
			"status":            StatusFailed,
			"status_transition": "running->failed",
			"error_code":        failureCode(err),
			"error":             documents.SanitizeErrorMessage(err.Error()),
			"duration_ms":       duration,
		})
		return memos.Memo{}, err
	}
	metrics.IncGenerationCompleted()
	s.logStatus(ctx, "", p.doc.ID, p.provider, StatusCompleted, "running->completed", duration)
	return memo, nil
}

// Submit validates a request, persists it as a requested job and dispatches
// it. Validation failures are returned before any job is written.
func (s *Service) Submit(ctx context.Context, req Request) (Job, error) {
	if s.Jobs == nil || s.Dispatcher == nil {
		return Job{}, errors.New("generation dispatcher not configured")
	}
	p, err := s.prepare(ctx, req)
	if err != nil {
		return Job{}, err
	}

	job := Job{
		ID:            uuid.NewString(),
		DocumentID:    p.doc.ID,
		Provider:      p.provider,
		MethodologyID: p.methodologyID,
		Status:        StatusRequested,
		CreatedAt:     s.now(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create generation job: %w", err)
	}
	s.logStatus(ctx, job.ID, job.DocumentID, job.Provider, StatusRequested, "none->requested", 0)

	if err := s.Dispatcher.Dispatch(ctx, job); err != nil {
		dispatchErr := fmt.Errorf("dispatch generation job: %w", err)
		if failErr := s.failJob(ctx, job, StatusRequested, dispatchErr, nil); failErr != nil {
			return Job{}, errors.Join(dispatchErr, failErr)
		}
		return Job{}, dispatchErr
	}
	return job, nil
}

// GetJob returns a generation job.
func (s *Service) GetJob(ctx context.Context, id string) (Job, error) {
	if s.Jobs == nil || strings.TrimSpace(id) == "" {
		return Job{}, ErrNotFound
	}
	return s.Jobs.GetByID(ctx, id)
}

// ListJobs returns the jobs of a document, oldest first.
func (s *Service) ListJobs(ctx context.Context, documentID string) ([]Job, error) {
	if _, err := s.Docs.Get(ctx, documentID); err != nil {
		return nil, err
	}
	if s.Jobs == nil {
		return []Job{}, nil
	}
	return s.Jobs.ListByDocument(ctx, documentID)
}

// ProcessJob runs a persisted job. Jobs that are no longer requested are
// skipped, so a redelivered message is harmless. Generation failures are
// recorded on the job; the returned error reports only failures to load or
// persist job state.
func (s *Service) ProcessJob(ctx context.Context, jobID string) (err error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		telemetry.Warn("generation.job_missing", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     jobID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load generation job: %w", err)
	}
	if job.Status != StatusRequested {
		telemetry.Info("generation.job_skipped", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     job.ID,
			"status":     job.Status,
		})
		return nil
	}

	startedAt := s.now()
	if err := s.Jobs.MarkRunning(ctx, job.ID, startedAt); err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark generation job running: %w", err)
	}
	metrics.IncGenerationStarted()
	s.logStatus(ctx, job.ID, job.DocumentID, job.Provider, StatusRunning, "requested->running", 0)

	defer func() {
		if r := recover(); r != nil {
			err = s.failJob(ctx, job, StatusRunning, fmt.Errorf("panic: %v", r), &startedAt)
		}
	}()

	p, err := s.prepare(ctx, Request{DocumentID: job.DocumentID, Provider: job.Provider, MethodologyID: job.MethodologyID})
	if err != nil {
		return s.failJob(ctx, job, StatusRunning, err, &startedAt)
	}
	memo, err := s.run(ctx, p)
	if err != nil {
		return s.failJob(ctx, job, StatusRunning, err, &startedAt)
	}

	completedAt := s.now()
	if err := s.Jobs.MarkCompleted(backgroundWithRequestID(ctx), job.ID, memo.ID, completedAt); err != nil {
		return fmt.Errorf("mark generation job completed: %w", err)
	}
	duration := durationMs(&startedAt, &completedAt)
	metrics.IncGenerationCompleted()
	metrics.ObserveGenerationDurationMs(duration)
	telemetry.Info("generation.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            job.ID,
		"document_id":       job.DocumentID,
		"memo_id":           memo.ID,
		"provider":          job.Provider,
		"status":            StatusCompleted,
		"status_transition": "running->completed",
		"duration_ms":       duration,
	})
	return nil
}

func (s *Service) failJob(ctx context.Context, job Job, from Status, cause error, startedAt *time.Time) error {
	code := failureCode(cause)
	msg := documents.SanitizeErrorMessage(cause.Error())
	completedAt := s.now()

	metrics.IncGenerationFailed()
	if startedAt != nil {
		metrics.ObserveGenerationDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Error("generation.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"job_id":            job.ID,
		"document_id":       job.DocumentID,
		"provider":          job.Provider,
		"status":            StatusFailed,
		"status_transition": string(from) + "->failed",
		"error_code":        code,
		"error":             msg,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})

	if err := s.Jobs.MarkFailed(backgroundWithRequestID(ctx), job.ID, code, msg, completedAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark generation job failed: %w", err)
	}
	return nil
}

func (s *Service) logStatus(ctx context.Context, jobID, documentID, provider string, status Status, transition string, duration float64) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       documentID,
		"provider":          provider,
		"status":            status,
		"status_transition": transition,
	}
	if jobID != "" {
		fields["job_id"] = jobID
	}
	if duration > 0 {
		fields["duration_ms"] = duration
	}
	telemetry.Info("generation.status", fields)
}

// failureCode maps a generation error to the code stored on a failed job.
func failureCode(err error) string {
	var pe *llm.ProviderError
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.As(err, &pe) && pe.Kind == llm.KindRateLimit:
		return ErrorCodeRateLimited
	case errors.Is(err, ErrGenerationFailed):
		return ErrorCodeGenerationFailed
	case errors.Is(err, ErrInvalidState):
		return ErrorCodeInvalidState
	case errors.Is(err, llm.ErrUnsupportedProvider), errors.Is(err, library.ErrNotFound):
		return ErrorCodeValidation
	default:
		return ErrorCodeInternal
	}
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}
