// Package generation coordinates paid generation jobs: the orchestrator
// debits credits and submits to a provider; the poller drives a job to
// exactly one terminal state, persisting results and refunding failures.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/ledger"
	"luxgen/internal/providers"
)

// Composer merges a product image onto a base scene, returning the public
// URL of the refined composite.
type Composer interface {
	Compose(ctx context.Context, userID, productURL, baseURL, prompt, aspectRatio string) (string, error)
}

// Orchestrator is the job-submission entry point.
type Orchestrator struct {
	ledger          *ledger.Ledger
	jobs            domain.JobRepository
	adapters        map[domain.Provider]providers.Adapter
	composer        Composer
	logger          infra.Logger
	defaultProvider domain.Provider
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Ledger          *ledger.Ledger
	Jobs            domain.JobRepository
	Adapters        map[domain.Provider]providers.Adapter
	Composer        Composer
	Logger          infra.Logger
	DefaultProvider domain.Provider
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Ledger == nil || opts.Jobs == nil || len(opts.Adapters) == 0 {
		return nil, errors.New("generation: ledger, job repository and adapters are required")
	}
	defaultProvider := opts.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = domain.ProviderReplicate
	}
	if _, ok := opts.Adapters[defaultProvider]; !ok {
		return nil, fmt.Errorf("generation: no adapter for default provider %s", defaultProvider)
	}
	return &Orchestrator{
		ledger:          opts.Ledger,
		jobs:            opts.Jobs,
		adapters:        opts.Adapters,
		composer:        opts.Composer,
		logger:          opts.Logger,
		defaultProvider: defaultProvider,
	}, nil
}

// Metadata travels back to the client alongside the job row.
type Metadata struct {
	Seed             int              `json:"seed"`
	GenerationConfig map[string]any   `json:"generation_config"`
	ComposedImageURL string           `json:"composed_image_url,omitempty"`
	PromptStructure  *PromptStructure `json:"prompt_structure,omitempty"`
}

// SubmitResult is the orchestrator's answer to a successful submission.
type SubmitResult struct {
	Job      *domain.GenerationJob
	Metadata Metadata
}

// Submit validates the request, debits the user, optionally routes through
// the composition pipeline, submits to the provider, and records the job.
//
// Rollback policy: any failure after the debit triggers a compensating
// refund, with one exception — a failed composition keeps the credits
// (matching the recorded product behavior; see DESIGN.md).
func (o *Orchestrator) Submit(ctx context.Context, userID string, req *SubmitRequest) (*SubmitResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	providerName := o.defaultProvider
	if req.Provider != "" {
		providerName = domain.Provider(req.Provider)
	}
	adapter, ok := o.adapters[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %s", domain.ErrInvalidRequest, providerName)
	}

	cost := Price(req.Duration)
	if _, err := o.ledger.Debit(ctx, userID, cost, ledger.Meta{Provider: string(providerName)}); err != nil {
		return nil, err
	}

	prompt := req.EffectivePrompt()

	composedURL := ""
	if o.composer != nil && req.StartImageURL != "" && req.EndImageURL != "" && req.StartImageURL != req.EndImageURL {
		url, err := o.composer.Compose(ctx, userID, req.EndImageURL, req.StartImageURL, prompt, req.AspectRatio)
		if err != nil {
			o.logger.Warn().Err(err).Str("user_id", userID).Msg("generation: composition failed, aborting before provider submit")
			return nil, err
		}
		composedURL = url
	}

	seed := req.Seed
	if seed <= 0 {
		seed = rand.Intn(1 << 30)
	}

	payload := providers.Payload{
		Prompt:      prompt,
		ImageURL:    req.StartImageURL,
		EndImageURL: req.EndImageURL,
		AspectRatio: req.AspectRatio,
		Duration:    req.Duration,
		Seed:        seed,
	}
	if composedURL != "" {
		// The merged scene replaces both inputs as the single video seed.
		payload.ImageURL = composedURL
		payload.EndImageURL = ""
	}

	providerJobID, err := adapter.Submit(ctx, payload)
	if err != nil {
		o.rollback(ctx, userID, cost, string(providerName), err)
		return nil, err
	}

	inputParams, _ := json.Marshal(payload)
	job := &domain.GenerationJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		ProviderJobID: providerJobID,
		Provider:      providerName,
		Status:        domain.JobStatusStarting,
		Prompt:        prompt,
		InputParams:   inputParams,
		CostInCredits: cost,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		o.rollback(ctx, userID, cost, string(providerName), err)
		return nil, fmt.Errorf("generation: record job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("provider", string(providerName)).
		Str("provider_job_id", providerJobID).
		Int("cost", cost).
		Msg("generation: job submitted")

	return &SubmitResult{
		Job: job,
		Metadata: Metadata{
			Seed: seed,
			GenerationConfig: map[string]any{
				"provider":     string(providerName),
				"aspect_ratio": req.AspectRatio,
				"duration":     req.Duration,
			},
			ComposedImageURL: composedURL,
			PromptStructure:  req.PromptStructure,
		},
	}, nil
}

// rollback is the submission-time safety net: the debit already happened but
// no job row exists, so the poller will never refund this attempt.
func (o *Orchestrator) rollback(ctx context.Context, userID string, cost int, provider string, cause error) {
	if _, err := o.ledger.Refund(ctx, userID, cost, ledger.Meta{
		Provider: provider,
		Note:     "submission rollback: " + cause.Error(),
	}); err != nil {
		o.logger.Error().Err(err).Str("user_id", userID).Int("cost", cost).
			Msg("generation: rollback refund failed")
	}
}
