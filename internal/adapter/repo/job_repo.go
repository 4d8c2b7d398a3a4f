package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository against PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.UserID,
		job.ProviderJobID,
		string(job.Provider),
		string(job.Status),
		job.Prompt,
		nullableBytes(job.InputParams),
		job.CostInCredits,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID))
}

// GetByProviderJobID fetches a job by the provider's own handle.
func (r *JobRepositoryPG) GetByProviderJobID(ctx context.Context, provider domain.Provider, providerJobID string) (*domain.GenerationJob, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJobByProviderID, string(provider), providerJobID))
}

// ListByUser returns the user's most recent jobs.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationJobs, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkSucceeded records the terminal success state. The guard on
// non-terminal status in the statement makes the transition single-shot.
func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, jobID, resultURL string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkJobSucceeded, jobID, resultURL)
	return err
}

// MarkFailed records the terminal failure state.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkJobFailed, jobID, errMsg)
	return err
}

// UpdateProgress stores an advisory progress value for a non-terminal job.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, status domain.JobStatus, progress int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, string(status), progress)
	return err
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var provider, status string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ProviderJobID,
		&provider,
		&status,
		&job.Prompt,
		&job.InputParams,
		&job.CostInCredits,
		&job.Progress,
		&job.ResultURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Provider = domain.Provider(provider)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
