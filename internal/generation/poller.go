package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/ledger"
	"luxgen/internal/persist"
	"luxgen/internal/providers"
)

// ArtifactPersister copies a temporary provider URL into durable storage.
type ArtifactPersister interface {
	Persist(ctx context.Context, tempURL, key string) (string, error)
	Owns(url string) bool
}

// PersistenceState reports whether a result URL survived the provider's
// retention window.
const (
	PersistenceSaved     = "saved"
	PersistenceTemporary = "temporary"
)

// Poller is the job-status entry point. Poll is idempotent: once a job is
// terminal, repeated calls return the stored snapshot without touching the
// provider, which is what makes refund and persistence at-most-once.
type Poller struct {
	jobs      domain.JobRepository
	adapters  map[domain.Provider]providers.Adapter
	ledger    *ledger.Ledger
	persister ArtifactPersister
	logger    infra.Logger
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Jobs      domain.JobRepository
	Adapters  map[domain.Provider]providers.Adapter
	Ledger    *ledger.Ledger
	Persister ArtifactPersister
	Logger    infra.Logger
}

// NewPoller wires the poller's collaborators.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Jobs == nil || len(opts.Adapters) == 0 || opts.Ledger == nil || opts.Persister == nil {
		return nil, errors.New("generation: jobs, adapters, ledger and persister are required")
	}
	return &Poller{
		jobs:      opts.Jobs,
		adapters:  opts.Adapters,
		ledger:    opts.Ledger,
		persister: opts.Persister,
		logger:    opts.Logger,
	}, nil
}

// PollResult is the poller's answer for one status query.
type PollResult struct {
	Job               *domain.GenerationJob
	PersistenceStatus string
}

// Poll loads the job and advances it by one observation of the provider.
func (p *Poller) Poll(ctx context.Context, jobID string) (*PollResult, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return p.advance(ctx, job)
}

// PollByProviderID resolves a provider's own handle to the local job first.
func (p *Poller) PollByProviderID(ctx context.Context, provider domain.Provider, providerJobID string) (*PollResult, error) {
	job, err := p.jobs.GetByProviderJobID(ctx, provider, providerJobID)
	if err != nil {
		return nil, err
	}
	return p.advance(ctx, job)
}

func (p *Poller) advance(ctx context.Context, job *domain.GenerationJob) (*PollResult, error) {
	// Terminal short-circuit: the stored snapshot is the answer forever.
	// Skipping the provider here is the at-most-once guard for both the
	// refund and the upload.
	if job.Status.IsTerminal() {
		return p.result(job), nil
	}

	adapter, ok := p.adapters[job.Provider]
	if !ok {
		return nil, fmt.Errorf("generation: no adapter for provider %s", job.Provider)
	}
	status, err := adapter.Poll(ctx, job.ProviderJobID)
	if err != nil {
		return nil, err
	}

	switch status.State {
	case providers.StateSucceeded:
		return p.succeed(ctx, job, status.ResultURL)
	case providers.StateFailed, providers.StateCanceled:
		return p.fail(ctx, job, status)
	default:
		jobStatus := domain.JobStatusProcessing
		if status.State == providers.StateStarting {
			jobStatus = domain.JobStatusStarting
		}
		if err := p.jobs.UpdateProgress(ctx, job.ID, jobStatus, status.Progress); err != nil {
			p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: progress update failed")
		}
		job.Status = jobStatus
		job.Progress = status.Progress
		return p.result(job), nil
	}
}

// succeed persists the provider artifact exactly once and records the
// terminal success. A persistence failure does not fail the job; the user
// keeps the temporary URL and the miss is alerted, because the asset will
// silently expire with the provider.
func (p *Poller) succeed(ctx context.Context, job *domain.GenerationJob, tempURL string) (*PollResult, error) {
	if tempURL == "" {
		return nil, fmt.Errorf("generation: %w: success without result url", domain.ErrProviderFailure)
	}

	durableURL := job.ResultURL
	if durableURL == "" || !p.persister.Owns(durableURL) {
		key := persist.Key(job.UserID, kindFromURL(tempURL), string(job.Provider), tempURL)
		url, err := p.persister.Persist(ctx, tempURL, key)
		if err != nil {
			infra.Critical(p.logger, "asset_persistence_failed").
				Err(err).
				Str("job_id", job.ID).
				Str("temp_url", tempURL).
				Msg("generation: result left on expiring provider url")
			durableURL = tempURL
		} else {
			durableURL = url
		}
	}

	if err := p.jobs.MarkSucceeded(ctx, job.ID, durableURL); err != nil {
		return nil, fmt.Errorf("generation: mark succeeded: %w", err)
	}
	job.Status = domain.JobStatusSucceeded
	job.Progress = 100
	job.ResultURL = durableURL
	return p.result(job), nil
}

// fail refunds the captured cost exactly once and records the terminal
// failure. The job status reflects the generation outcome even if the
// refund path degrades; ledger consistency is reconciled from its own log.
func (p *Poller) fail(ctx context.Context, job *domain.GenerationJob, status *providers.Status) (*PollResult, error) {
	if _, err := p.ledger.Refund(ctx, job.UserID, job.CostInCredits, ledger.Meta{
		JobID:    job.ID,
		Provider: string(job.Provider),
	}); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: refund for failed job did not complete")
	}

	reason := status.FailureReason
	if reason == "" {
		reason = "generation " + string(status.State)
	}
	if err := p.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		return nil, fmt.Errorf("generation: mark failed: %w", err)
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = reason
	return p.result(job), nil
}

func (p *Poller) result(job *domain.GenerationJob) *PollResult {
	persistence := PersistenceTemporary
	if job.ResultURL != "" && p.persister.Owns(job.ResultURL) {
		persistence = PersistenceSaved
	}
	return &PollResult{Job: job, PersistenceStatus: persistence}
}

func kindFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			return "image"
		}
	}
	return "video"
}
