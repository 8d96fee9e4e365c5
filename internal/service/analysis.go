package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
	"github.com/talentdesk/cv-analysis-back/internal/queue"
	"github.com/talentdesk/cv-analysis-back/internal/repository"
	"github.com/talentdesk/cv-analysis-back/internal/storage"
)

var (
	// ErrResultNotReady is returned by Result while the job is still pending
	// or processing.
	ErrResultNotReady = errors.New("analysis result is not ready")

	// ErrJobFailed is returned by Result for jobs that ended in failure. The
	// stored error message travels alongside via the job record.
	ErrJobFailed = errors.New("analysis job failed")

	// ErrReanalyzeConflict rejects reanalysis while a worker owns the job.
	ErrReanalyzeConflict = errors.New("job is currently processing")
)

type SubmitInput struct {
	Data         []byte
	Filename     string
	ContentType  string
	SubmitterRef string
	SubjectRefs  []string
	ContextText  string
}

// AnalysisService owns the job lifecycle: it persists submissions, hands
// them to the queue, and serves reads. The heavy work happens in the worker.
type AnalysisService struct {
	repo      repository.JobsRepository
	documents storage.DocumentStore
	producer  queue.Producer
}

func NewAnalysisService(
	repo repository.JobsRepository,
	documents storage.DocumentStore,
	producer queue.Producer,
) *AnalysisService {
	return &AnalysisService{repo: repo, documents: documents, producer: producer}
}

// Submit stores the raw document, creates a pending job and enqueues it.
// Format detection prefers the declared content type and falls back to the
// filename extension.
func (s *AnalysisService) Submit(ctx context.Context, input SubmitInput) (*domain.AnalysisJob, error) {
	format, err := detectFormat(input.ContentType, input.Filename)
	if err != nil {
		return nil, err
	}

	documentRef, err := s.documents.Put(ctx, input.Data)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.AnalysisJob{
		ID:           uuid.NewString(),
		DocumentRef:  documentRef,
		Format:       format,
		SubmitterRef: strings.TrimSpace(input.SubmitterRef),
		SubjectRefs:  normalizeSubjectRefs(input.SubjectRefs),
		ContextText:  strings.TrimSpace(input.ContextText),
		Status:       domain.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		_ = s.documents.Delete(ctx, documentRef)
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.enqueue(ctx, job, false); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *AnalysisService) Status(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	return s.repo.GetJob(ctx, jobID)
}

// Result returns the stored analysis for completed jobs only. Pending and
// processing jobs yield ErrResultNotReady; failed jobs yield ErrJobFailed
// together with the job carrying the stored error message.
func (s *AnalysisService) Result(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		return job, nil
	case domain.JobStatusFailed:
		return job, ErrJobFailed
	default:
		return job, ErrResultNotReady
	}
}

// Reanalyze resets a settled job to pending and enqueues a fresh run against
// the original document, optionally replacing the stored context text. It
// does not wait for the new result. Jobs owned by a worker cannot be reset.
func (s *AnalysisService) Reanalyze(ctx context.Context, jobID string, contextText *string) (*domain.AnalysisJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusProcessing {
		return nil, ErrReanalyzeConflict
	}

	if contextText != nil {
		job.ContextText = strings.TrimSpace(*contextText)
	}
	job.Status = domain.JobStatusPending
	job.Result = nil
	job.ErrorMessage = ""
	job.OverallScore = 0
	job.ExtractedText = ""
	job.ProcessedAt = nil
	job.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("reset job: %w", err)
	}

	if err := s.enqueue(ctx, job, true); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes the stored document first and the job record second, so a
// failed blob delete never leaves an orphaned record pointing at nothing.
func (s *AnalysisService) Delete(ctx context.Context, jobID string) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, job.DocumentRef); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return s.repo.DeleteJob(ctx, jobID)
}

func (s *AnalysisService) List(
	ctx context.Context,
	filter domain.JobListFilter,
) ([]domain.JobSummary, int, error) {
	return s.repo.ListJobs(ctx, filter)
}

func (s *AnalysisService) enqueue(ctx context.Context, job *domain.AnalysisJob, reanalysis bool) error {
	message := domain.QueueMessage{
		JobID:       job.ID,
		Reanalysis:  reanalysis,
		Attempt:     0,
		RequestedAt: time.Now().UTC(),
	}

	if err := s.producer.Enqueue(ctx, message); err != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = "could not schedule analysis"
		job.UpdatedAt = time.Now().UTC()
		_ = s.repo.UpdateJob(ctx, job)
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func detectFormat(contentType, filename string) (domain.DocumentFormat, error) {
	if format, err := domain.ParseDocumentFormat(contentType); err == nil {
		return format, nil
	}
	if extension := filepath.Ext(filename); extension != "" {
		if format, err := domain.ParseDocumentFormat(extension); err == nil {
			return format, nil
		}
	}
	return "", fmt.Errorf("unsupported document format: content type %q, filename %q", contentType, filename)
}

func normalizeSubjectRefs(refs []string) []string {
	normalized := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
