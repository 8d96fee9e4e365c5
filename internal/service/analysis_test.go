package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
	"github.com/talentdesk/cv-analysis-back/internal/repository"
	"github.com/talentdesk/cv-analysis-back/internal/storage"
)

type recordingProducer struct {
	mu       sync.Mutex
	messages []domain.QueueMessage
	err      error
}

func (p *recordingProducer) Enqueue(_ context.Context, message domain.QueueMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message)
	return nil
}

func (p *recordingProducer) last(t *testing.T) domain.QueueMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		t.Fatal("no messages enqueued")
	}
	return p.messages[len(p.messages)-1]
}

func newAnalysisFixture() (*AnalysisService, *repository.MemoryJobsRepository, *storage.MemoryDocumentStore, *recordingProducer) {
	repo := repository.NewMemoryJobsRepository()
	documents := storage.NewMemoryDocumentStore()
	producer := &recordingProducer{}
	return NewAnalysisService(repo, documents, producer), repo, documents, producer
}

func TestSubmitCreatesPendingJobAndEnqueues(t *testing.T) {
	analysis, _, documents, producer := newAnalysisFixture()

	job, err := analysis.Submit(context.Background(), SubmitInput{
		Data:         []byte("resume bytes"),
		Filename:     "resume.pdf",
		ContentType:  "application/pdf",
		SubmitterRef: " recruiter-9 ",
		SubjectRefs:  []string{"candidate-1", " candidate-1 ", "", "candidate-2"},
		ContextText:  "Backend engineer opening",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if job.Status != domain.JobStatusPending {
		t.Fatalf("new job should be pending, got %s", job.Status)
	}
	if job.Format != domain.FormatPDF {
		t.Fatalf("unexpected format: %s", job.Format)
	}
	if job.SubmitterRef != "recruiter-9" {
		t.Fatalf("submitter ref not trimmed: %q", job.SubmitterRef)
	}
	if len(job.SubjectRefs) != 2 {
		t.Fatalf("subject refs not deduplicated: %v", job.SubjectRefs)
	}

	message := producer.last(t)
	if message.JobID != job.ID || message.Reanalysis {
		t.Fatalf("unexpected queue message: %+v", message)
	}

	stored, err := documents.Get(context.Background(), job.DocumentRef)
	if err != nil || string(stored) != "resume bytes" {
		t.Fatalf("document not stored: %v", err)
	}
}

func TestSubmitDetectsFormatFromExtension(t *testing.T) {
	analysis, _, _, _ := newAnalysisFixture()

	job, err := analysis.Submit(context.Background(), SubmitInput{
		Data:        []byte("plain resume"),
		Filename:    "resume.txt",
		ContentType: "application/octet-stream",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if job.Format != domain.FormatTXT {
		t.Fatalf("extension fallback failed: %s", job.Format)
	}
}

func TestSubmitRejectsUnsupportedFormat(t *testing.T) {
	analysis, _, _, producer := newAnalysisFixture()

	_, err := analysis.Submit(context.Background(), SubmitInput{
		Data:        []byte("spreadsheet"),
		Filename:    "data.xlsx",
		ContentType: "application/vnd.ms-excel",
	})
	if err == nil {
		t.Fatal("unsupported format must be rejected")
	}
	producer.mu.Lock()
	defer producer.mu.Unlock()
	if len(producer.messages) != 0 {
		t.Fatal("nothing should be enqueued for a rejected submit")
	}
}

func TestSubmitEnqueueFailureMarksJobFailed(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	producer := &recordingProducer{err: errors.New("stream down")}
	analysis := NewAnalysisService(repo, storage.NewMemoryDocumentStore(), producer)

	_, err := analysis.Submit(context.Background(), SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
	})
	if err == nil {
		t.Fatal("enqueue failure must surface")
	}

	summaries, _, listErr := repo.ListJobs(context.Background(), domain.JobListFilter{})
	if listErr != nil {
		t.Fatalf("list failed: %v", listErr)
	}
	if len(summaries) != 1 || summaries[0].Status != domain.JobStatusFailed {
		t.Fatalf("job should be recorded as failed: %+v", summaries)
	}
}

func TestResultStates(t *testing.T) {
	analysis, repo, _, _ := newAnalysisFixture()
	ctx := context.Background()

	job, err := analysis.Submit(ctx, SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := analysis.Result(ctx, job.ID); !errors.Is(err, ErrResultNotReady) {
		t.Fatalf("pending job should not be ready, got %v", err)
	}

	job.Status = domain.JobStatusFailed
	job.ErrorMessage = "document is empty"
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	failed, err := analysis.Result(ctx, job.ID)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("failed job should return ErrJobFailed, got %v", err)
	}
	if failed.ErrorMessage != "document is empty" {
		t.Fatalf("error message lost: %q", failed.ErrorMessage)
	}

	job.Status = domain.JobStatusCompleted
	job.Result = &domain.AnalysisResult{OverallScore: 77, RelevanceScore: 70}
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	completed, err := analysis.Result(ctx, job.ID)
	if err != nil {
		t.Fatalf("completed job should be readable: %v", err)
	}
	if completed.Result == nil || completed.Result.OverallScore != 77 {
		t.Fatalf("unexpected result: %+v", completed.Result)
	}

	if _, err := analysis.Result(ctx, "missing-id"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing job should be not found, got %v", err)
	}
}

func TestReanalyzeResetsSettledJob(t *testing.T) {
	analysis, repo, _, producer := newAnalysisFixture()
	ctx := context.Background()

	job, err := analysis.Submit(ctx, SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	job.Status = domain.JobStatusCompleted
	job.Result = &domain.AnalysisResult{OverallScore: 88}
	job.OverallScore = 88
	job.ExtractedText = "old text"
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	reset, err := analysis.Reanalyze(ctx, job.ID, nil)
	if err != nil {
		t.Fatalf("reanalyze failed: %v", err)
	}
	if reset.Status != domain.JobStatusPending {
		t.Fatalf("job should return to pending, got %s", reset.Status)
	}
	if reset.Result != nil || reset.OverallScore != 0 || reset.ExtractedText != "" {
		t.Fatalf("previous outcome should be cleared: %+v", reset)
	}
	if message := producer.last(t); !message.Reanalysis {
		t.Fatal("reanalysis message should be flagged")
	}
}

func TestReanalyzeConflictsWhileProcessing(t *testing.T) {
	analysis, repo, _, _ := newAnalysisFixture()
	ctx := context.Background()

	job, err := analysis.Submit(ctx, SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if claimed, err := repo.ClaimProcessing(ctx, job.ID); err != nil || !claimed {
		t.Fatalf("claim failed: claimed=%v err=%v", claimed, err)
	}

	if _, err := analysis.Reanalyze(ctx, job.ID, nil); !errors.Is(err, ErrReanalyzeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReanalyzeReplacesContextText(t *testing.T) {
	analysis, repo, _, _ := newAnalysisFixture()
	ctx := context.Background()

	job, err := analysis.Submit(ctx, SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
		ContextText: "Generalist opening",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	newContext := "  Kubernetes platform engineer  "
	reset, err := analysis.Reanalyze(ctx, job.ID, &newContext)
	if err != nil {
		t.Fatalf("reanalyze failed: %v", err)
	}
	if reset.ContextText != "Kubernetes platform engineer" {
		t.Fatalf("context not replaced: %q", reset.ContextText)
	}

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ContextText != "Kubernetes platform engineer" {
		t.Fatalf("context not persisted: %q", stored.ContextText)
	}

	kept, err := analysis.Reanalyze(ctx, job.ID, nil)
	if err != nil {
		t.Fatalf("reanalyze without context failed: %v", err)
	}
	if kept.ContextText != "Kubernetes platform engineer" {
		t.Fatalf("nil context must keep the stored value: %q", kept.ContextText)
	}
}

func TestDeleteRemovesJobAndDocument(t *testing.T) {
	analysis, _, documents, _ := newAnalysisFixture()
	ctx := context.Background()

	job, err := analysis.Submit(ctx, SubmitInput{
		Data:        []byte("resume bytes"),
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := analysis.Delete(ctx, job.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := analysis.Status(ctx, job.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("job record should be gone, got %v", err)
	}
	if _, err := documents.Get(ctx, job.DocumentRef); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Fatalf("document should be gone, got %v", err)
	}
}
