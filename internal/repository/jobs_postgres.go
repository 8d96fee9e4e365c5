package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobsRepository{pool: pool}, nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.AnalysisJob) error {
	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analysis_jobs (
			id,
			document_ref,
			format,
			submitter_ref,
			subject_refs,
			context_text,
			status,
			extracted_text,
			result,
			error_message,
			overall_score,
			created_at,
			updated_at,
			processed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		job.ID,
		job.DocumentRef,
		string(job.Format),
		job.SubmitterRef,
		job.SubjectRefs,
		job.ContextText,
		string(job.Status),
		job.ExtractedText,
		result,
		job.ErrorMessage,
		job.OverallScore,
		job.CreatedAt,
		job.UpdatedAt,
		job.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) UpdateJob(ctx context.Context, job *domain.AnalysisJob) error {
	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	command, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2,
			context_text = $3,
			extracted_text = $4,
			result = $5,
			error_message = $6,
			overall_score = $7,
			updated_at = $8,
			processed_at = $9
		WHERE id = $1
	`,
		job.ID,
		string(job.Status),
		job.ContextText,
		job.ExtractedText,
		result,
		job.ErrorMessage,
		job.OverallScore,
		job.UpdatedAt,
		job.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	var (
		job         domain.AnalysisJob
		format      string
		status      string
		result      []byte
		processedAt *time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, document_ref, format, submitter_ref, subject_refs, context_text,
			status, extracted_text, result, error_message, overall_score,
			created_at, updated_at, processed_at
		FROM analysis_jobs
		WHERE id = $1
	`, jobID).Scan(
		&job.ID,
		&job.DocumentRef,
		&format,
		&job.SubmitterRef,
		&job.SubjectRefs,
		&job.ContextText,
		&status,
		&job.ExtractedText,
		&result,
		&job.ErrorMessage,
		&job.OverallScore,
		&job.CreatedAt,
		&job.UpdatedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}

	job.Format = domain.DocumentFormat(format)
	job.Status = domain.JobStatus(status)
	job.ProcessedAt = processedAt
	if len(result) > 0 {
		decoded := &domain.AnalysisResult{}
		if err := json.Unmarshal(result, decoded); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = decoded.Normalize()
	}
	return &job, nil
}

func (r *PostgresJobsRepository) ClaimProcessing(ctx context.Context, jobID string) (bool, error) {
	command, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, jobID, string(domain.JobStatusProcessing), time.Now().UTC(), string(domain.JobStatusPending))
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if command.RowsAffected() == 1 {
		return true, nil
	}

	// No row moved: either the id is unknown or another unit already owns
	// the run. Resolve which so callers can report not-found correctly.
	if _, err := r.GetJob(ctx, jobID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PostgresJobsRepository) ListJobs(
	ctx context.Context,
	filter domain.JobListFilter,
) ([]domain.JobSummary, int, error) {
	filter = normalizeFilter(filter)

	baseQuery, args := buildJobFilters(filter)

	var total int
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, status, format, submitter_ref, subject_refs, overall_score, created_at, processed_at
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		baseQuery,
		len(args)+1,
		len(args)+2,
	)
	listArgs := append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.JobSummary, 0)
	for rows.Next() {
		var (
			summary     domain.JobSummary
			status      string
			format      string
			processedAt *time.Time
		)
		if err := rows.Scan(
			&summary.JobID,
			&status,
			&format,
			&summary.SubmitterRef,
			&summary.SubjectRefs,
			&summary.OverallScore,
			&summary.CreatedAt,
			&processedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan job summary: %w", err)
		}
		summary.Status = domain.JobStatus(status)
		summary.Format = domain.DocumentFormat(format)
		summary.ProcessedAt = processedAt
		summaries = append(summaries, summary)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate job summaries: %w", rows.Err())
	}
	return summaries, total, nil
}

func (r *PostgresJobsRepository) DeleteJob(ctx context.Context, jobID string) error {
	command, err := r.pool.Exec(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildJobFilters(filter domain.JobListFilter) (string, []any) {
	query := strings.Builder{}
	query.WriteString("FROM analysis_jobs")

	args := make([]any, 0, 1)
	if ref := strings.TrimSpace(filter.SubjectRef); ref != "" {
		query.WriteString(" WHERE $1 = ANY(subject_refs)")
		args = append(args, ref)
	}
	return query.String(), args
}

func encodeResult(result *domain.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return encoded, nil
}
