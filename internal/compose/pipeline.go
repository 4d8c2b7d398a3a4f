// Package compose merges a user-supplied product image onto a base scene
// before video generation: background removal, geometric overlay, aspect
// crop, then diffusion refinement. Any stage failure is terminal for the
// request; the pipeline never retries and never forwards a partial result.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/providers"
	"luxgen/internal/storage"
)

// Pipeline holds the collaborators for the virtual product placement flow.
type Pipeline struct {
	segmenter    *Segmenter
	refiner      providers.Adapter
	store        storage.ObjectStore
	httpClient   *http.Client
	logger       infra.Logger
	strength     float64
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// Options configures a Pipeline.
type Options struct {
	Segmenter  *Segmenter
	Refiner    providers.Adapter
	Store      storage.ObjectStore
	HTTPClient *http.Client
	Logger     infra.Logger
	// Strength is the image-to-image denoise strength for refinement. The
	// default keeps the product's pixels intact while blending lighting.
	Strength     float64
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// New constructs a Pipeline with sane defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Segmenter == nil {
		return nil, errors.New("compose: segmenter is required")
	}
	if opts.Refiner == nil {
		return nil, errors.New("compose: refiner adapter is required")
	}
	if opts.Store == nil {
		return nil, errors.New("compose: object store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	strength := opts.Strength
	if strength <= 0 {
		strength = 0.22
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 45 * time.Second
	}
	return &Pipeline{
		segmenter:    opts.Segmenter,
		refiner:      opts.Refiner,
		store:        opts.Store,
		httpClient:   httpClient,
		logger:       opts.Logger,
		strength:     strength,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}, nil
}

// Compose runs the full pipeline and returns the public URL of the merged,
// refined scene image.
func (p *Pipeline) Compose(ctx context.Context, userID, productURL, baseURL, prompt, aspectRatio string) (string, error) {
	ratioW, ratioH, err := parseAspectRatio(aspectRatio)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompositionFailed, err)
	}

	cutout, err := p.segmenter.RemoveBackground(ctx, productURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompositionFailed, err)
	}
	object, err := imaging.Decode(bytes.NewReader(cutout))
	if err != nil {
		return "", fmt.Errorf("%w: decode cut-out: %v", domain.ErrCompositionFailed, err)
	}

	baseData, err := p.download(ctx, baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompositionFailed, err)
	}
	base, err := imaging.Decode(bytes.NewReader(baseData))
	if err != nil {
		return "", fmt.Errorf("%w: decode base image: %v", domain.ErrCompositionFailed, err)
	}

	composited := overlayProduct(base, object)
	cropped := cropToRatio(composited, ratioW, ratioH)

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, cropped, imaging.PNG); err != nil {
		return "", fmt.Errorf("%w: encode composite: %v", domain.ErrCompositionFailed, err)
	}

	// The composite goes to durable storage before refinement so the raw
	// placement stays inspectable even if the diffusion call fails.
	key := fmt.Sprintf("videos/%s/debug/COLLAGE_VERIFIED_%d.png", userID, time.Now().UnixMilli())
	if err := p.store.Put(ctx, key, "image/png", encoded.Bytes()); err != nil {
		return "", fmt.Errorf("%w: store composite: %v", domain.ErrCompositionFailed, err)
	}
	compositeURL := p.store.PublicURL(key)
	p.logger.Info().
		Str("user_id", userID).
		Str("composite_url", compositeURL).
		Msg("compose: composite stored, starting refinement")

	refinedURL, err := p.refine(ctx, compositeURL, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRefinementFailed, err)
	}
	return refinedURL, nil
}

// refine runs one image-to-image pass over the composite with low strength
// so the product's pixels are preserved while lighting and shadows blend in.
// The refined image is required: an un-refined composite is never forwarded
// to the video provider.
func (p *Pipeline) refine(ctx context.Context, compositeURL, prompt string) (string, error) {
	jobID, err := p.refiner.Submit(ctx, providers.Payload{
		Prompt:   prompt,
		ImageURL: compositeURL,
		Strength: p.strength,
	})
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(p.waitTimeout)
	for {
		status, err := p.refiner.Poll(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch status.State {
		case providers.StateSucceeded:
			if status.ResultURL == "" {
				return "", errors.New("refinement succeeded without an image")
			}
			return status.ResultURL, nil
		case providers.StateFailed, providers.StateCanceled:
			reason := status.FailureReason
			if reason == "" {
				reason = string(status.State)
			}
			return "", fmt.Errorf("refinement %s", reason)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("refinement timed out after %s", p.waitTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	return data, nil
}
