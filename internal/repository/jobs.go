package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// JobsRepository abstracts analysis-job persistence. ClaimProcessing is the
// only guarded transition: it atomically moves pending → processing so that
// exactly one unit of work owns a run even when reanalysis races a prior run.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.AnalysisJob) error
	UpdateJob(ctx context.Context, job *domain.AnalysisJob) error
	GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error)
	ClaimProcessing(ctx context.Context, jobID string) (bool, error)
	ListJobs(ctx context.Context, filter domain.JobListFilter) ([]domain.JobSummary, int, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// MemoryJobsRepository stores jobs in memory for local development and tests.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.AnalysisJob
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.AnalysisJob),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, job *domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) ClaimProcessing(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryJobsRepository) ListJobs(
	_ context.Context,
	filter domain.JobListFilter,
) ([]domain.JobSummary, int, error) {
	filter = normalizeFilter(filter)

	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]domain.JobSummary, 0)
	for _, job := range r.jobs {
		if filter.SubjectRef != "" && !hasSubjectRef(job, filter.SubjectRef) {
			continue
		}
		summaries = append(summaries, toSummary(job))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	total := len(summaries)
	start := filter.Offset
	if start >= total {
		return []domain.JobSummary{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return summaries[start:end], total, nil
}

func (r *MemoryJobsRepository) DeleteJob(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

func hasSubjectRef(job *domain.AnalysisJob, ref string) bool {
	for _, candidate := range job.SubjectRefs {
		if candidate == ref {
			return true
		}
	}
	return false
}

func toSummary(job *domain.AnalysisJob) domain.JobSummary {
	summary := domain.JobSummary{
		JobID:        job.ID,
		Status:       job.Status,
		Format:       job.Format,
		SubmitterRef: job.SubmitterRef,
		SubjectRefs:  append([]string(nil), job.SubjectRefs...),
		OverallScore: job.OverallScore,
		CreatedAt:    job.CreatedAt,
	}
	if job.ProcessedAt != nil {
		processedAt := *job.ProcessedAt
		summary.ProcessedAt = &processedAt
	}
	return summary
}

func normalizeFilter(filter domain.JobListFilter) domain.JobListFilter {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

func cloneJob(job *domain.AnalysisJob) *domain.AnalysisJob {
	if job == nil {
		return nil
	}
	clone := *job
	clone.SubjectRefs = append([]string(nil), job.SubjectRefs...)
	if job.Result != nil {
		result := *job.Result
		result.GrammarIssues = append([]domain.GrammarIssue(nil), job.Result.GrammarIssues...)
		result.FormattingIssues = append([]domain.FormattingIssue(nil), job.Result.FormattingIssues...)
		result.Suggestions = append([]string(nil), job.Result.Suggestions...)
		result.Strengths = append([]string(nil), job.Result.Strengths...)
		result.Weaknesses = append([]string(nil), job.Result.Weaknesses...)
		clone.Result = &result
	}
	if job.ProcessedAt != nil {
		processedAt := *job.ProcessedAt
		clone.ProcessedAt = &processedAt
	}
	return &clone
}
