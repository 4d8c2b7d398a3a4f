package domain

import "context"

// JobRepository defines persistence for generation jobs. Jobs are created at
// submission, mutated only by the status poller, and never deleted here.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	GetByProviderJobID(ctx context.Context, provider Provider, providerJobID string) (*GenerationJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]GenerationJob, error)
	MarkSucceeded(ctx context.Context, jobID, resultURL string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	UpdateProgress(ctx context.Context, jobID string, status JobStatus, progress int) error
}
