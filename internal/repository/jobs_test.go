package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

func seedJob(t *testing.T, repo *MemoryJobsRepository, id string, createdAt time.Time, subjectRefs ...string) *domain.AnalysisJob {
	t.Helper()
	job := &domain.AnalysisJob{
		ID:          id,
		DocumentRef: "doc-" + id,
		Format:      domain.FormatPDF,
		SubjectRefs: subjectRefs,
		Status:      domain.JobStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := repo.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return job
}

func TestMemoryJobsRepositoryCRUD(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()
	job := seedJob(t, repo, "job-1", time.Now().UTC(), "candidate-1")

	loaded, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.DocumentRef != "doc-job-1" {
		t.Fatalf("unexpected record: %+v", loaded)
	}

	loaded.Status = domain.JobStatusCompleted
	loaded.OverallScore = 91
	if err := repo.UpdateJob(ctx, loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.Status != domain.JobStatusCompleted || updated.OverallScore != 91 {
		t.Fatalf("update not persisted: %+v", updated)
	}

	if err := repo.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted job should be not found, got %v", err)
	}
	if err := repo.DeleteJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should be not found, got %v", err)
	}
	if err := repo.UpdateJob(ctx, job); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of missing job should be not found, got %v", err)
	}
}

func TestMemoryJobsRepositoryClaimProcessing(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()
	job := seedJob(t, repo, "job-1", time.Now().UTC())

	claimed, err := repo.ClaimProcessing(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	claimed, err = repo.ClaimProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if claimed {
		t.Fatal("a processing job must not be claimable again")
	}

	if _, err := repo.ClaimProcessing(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job should be not found, got %v", err)
	}

	loaded, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != domain.JobStatusProcessing {
		t.Fatalf("claim should move the job to processing, got %s", loaded.Status)
	}
}

func TestMemoryJobsRepositoryListFiltersAndPaginates(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		refs := []string{"candidate-a"}
		if i%2 == 1 {
			refs = []string{"candidate-b"}
		}
		seedJob(t, repo, fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute), refs...)
	}

	all, total, err := repo.ListJobs(ctx, domain.JobListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(all) != 5 {
		t.Fatalf("expected all five jobs, got %d/%d", len(all), total)
	}
	if all[0].JobID != "job-4" || all[4].JobID != "job-0" {
		t.Fatalf("jobs must sort newest first: %s .. %s", all[0].JobID, all[4].JobID)
	}

	filtered, total, err := repo.ListJobs(ctx, domain.JobListFilter{SubjectRef: "candidate-b"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if total != 2 || len(filtered) != 2 {
		t.Fatalf("subject filter failed: %d/%d", len(filtered), total)
	}

	page, total, err := repo.ListJobs(ctx, domain.JobListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if total != 5 || len(page) != 2 || page[0].JobID != "job-2" {
		t.Fatalf("pagination failed: total=%d page=%+v", total, page)
	}

	empty, total, err := repo.ListJobs(ctx, domain.JobListFilter{Offset: 50})
	if err != nil {
		t.Fatalf("offset past end: %v", err)
	}
	if total != 5 || len(empty) != 0 {
		t.Fatalf("offset past end should return an empty page: %d/%d", len(empty), total)
	}
}

func TestMemoryJobsRepositoryClonesRecords(t *testing.T) {
	repo := NewMemoryJobsRepository()
	ctx := context.Background()

	original := seedJob(t, repo, "job-1", time.Now().UTC(), "candidate-1")
	original.SubjectRefs[0] = "mutated"

	loaded, err := repo.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.SubjectRefs[0] != "candidate-1" {
		t.Fatal("stored record must not share slices with the caller")
	}

	loaded.Result = &domain.AnalysisResult{OverallScore: 10}
	reloaded, err := repo.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Result != nil {
		t.Fatal("mutating a loaded record must not leak into the store")
	}
}
