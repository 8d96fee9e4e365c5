package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/ai"
	"github.com/talentdesk/cv-analysis-back/internal/domain"
	"github.com/talentdesk/cv-analysis-back/internal/extract"
	"github.com/talentdesk/cv-analysis-back/internal/queue"
	"github.com/talentdesk/cv-analysis-back/internal/repository"
	"github.com/talentdesk/cv-analysis-back/internal/service"
	"github.com/talentdesk/cv-analysis-back/internal/storage"
)

// Processor consumes queued jobs and runs the extract-then-score pipeline,
// persisting every status transition.
type Processor struct {
	consumer  queue.Consumer
	repo      repository.JobsRepository
	documents storage.DocumentStore
	extractor *extract.Extractor
	scorer    *service.ScoringService
	logger    *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	repo repository.JobsRepository,
	documents storage.DocumentStore,
	extractor *extract.Extractor,
	scorer *service.ScoringService,
	logger *log.Logger,
) *Processor {
	return &Processor{
		consumer:  consumer,
		repo:      repo,
		documents: documents,
		extractor: extractor,
		scorer:    scorer,
		logger:    logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// processMessage returns an error only for infrastructure faults the queue
// should redeliver. Pipeline outcomes, including failures, are persisted on
// the job and acknowledged.
func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) (err error) {
	job, err := p.repo.GetJob(ctx, message.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Job deleted while queued; nothing left to do.
			return nil
		}
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}

	claimed, err := p.repo.ClaimProcessing(ctx, job.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		if p.logger != nil {
			p.logger.Printf("skipping job not in pending state job_id=%s status=%s", job.ID, job.Status)
		}
		return nil
	}
	job.Status = domain.JobStatusProcessing

	defer func() {
		if recovered := recover(); recovered != nil {
			if p.logger != nil {
				p.logger.Printf("panic while processing job_id=%s: %v", job.ID, recovered)
			}
			err = p.failJob(ctx, job, "internal error during analysis")
		}
	}()

	data, err := p.documents.Get(ctx, job.DocumentRef)
	if err != nil {
		return p.failJob(ctx, job, "the stored document is no longer available")
	}

	text, extractErr := p.extractor.Extract(data, job.Format)
	if extractErr != nil {
		return p.failJob(ctx, job, extractionFailureMessage(extractErr))
	}

	job.ExtractedText = text
	job.UpdatedAt = time.Now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist extracted text: %w", err)
	}

	outcome, scoreErr := p.scorer.Analyze(ctx, text, job.ContextText)
	if scoreErr != nil {
		return p.failJob(ctx, job, scoringFailureMessage(scoreErr))
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.ErrorMessage = ""
	job.Result = outcome.Result
	job.OverallScore = outcome.Result.OverallScore
	job.UpdatedAt = now
	job.ProcessedAt = &now
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if p.logger != nil {
		p.logger.Printf(
			"job completed job_id=%s model=%s score=%d cache_hit=%t fallback=%t",
			job.ID, outcome.ModelID, job.OverallScore, outcome.CacheHit, outcome.UsedFallback,
		)
	}
	return nil
}

func (p *Processor) failJob(ctx context.Context, job *domain.AnalysisJob, message string) error {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = time.Now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	if p.logger != nil {
		p.logger.Printf("job failed job_id=%s reason=%q", job.ID, message)
	}
	return nil
}

func extractionFailureMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrEmptyDocument):
		return "the uploaded document is empty"
	case errors.Is(err, extract.ErrCorruptDocument):
		return "the document could not be read and may be corrupted"
	case errors.Is(err, extract.ErrNoTextContent):
		return "no text content could be extracted from the document"
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "the document format is not supported"
	default:
		return "the document could not be processed"
	}
}

func scoringFailureMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrTextTooShort):
		return "the document does not contain enough text to analyze"
	case errors.Is(err, ai.ErrScoringAuth):
		return "the analysis service rejected the configured credentials"
	case errors.Is(err, ai.ErrScoringQuota):
		return "the analysis service quota is exhausted, try again later"
	case errors.Is(err, ai.ErrScoringNotConfigured):
		return "the analysis service is not configured"
	case errors.Is(err, ai.ErrScoringUnavailable):
		return "the analysis service is temporarily unavailable, try again later"
	default:
		return "the analysis could not be completed"
	}
}
