// Package fal implements the providers.Adapter contract against the fal.ai
// queue API.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/providers"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string // e.g. "fal-ai/kling-video/v1.6/pro/image-to-video"
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the fal.ai queue API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = "fal-ai/kling-video/v1.6/pro/image-to-video"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the provider in job records.
func (c *Client) Name() string {
	return string(domain.ProviderFal)
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	Error         string `json:"error"`
}

type resultResponse struct {
	Video  *fileRef  `json:"video"`
	Images []fileRef `json:"images"`
	Image  *fileRef  `json:"image"`
	Detail string    `json:"detail"`
}

type fileRef struct {
	URL string `json:"url"`
}

// Submit enqueues a request on the model's queue and returns its request id.
func (c *Client) Submit(ctx context.Context, payload providers.Payload) (string, error) {
	input := map[string]any{}
	if p := strings.TrimSpace(payload.Prompt); p != "" {
		input["prompt"] = p
	}
	if payload.ImageURL != "" {
		input["image_url"] = payload.ImageURL
	}
	if payload.EndImageURL != "" {
		input["tail_image_url"] = payload.EndImageURL
	}
	if payload.AspectRatio != "" {
		input["aspect_ratio"] = payload.AspectRatio
	}
	if payload.Duration != "" {
		input["duration"] = payload.Duration
	}
	if payload.Seed > 0 {
		input["seed"] = payload.Seed
	}
	if payload.Strength > 0 {
		input["strength"] = payload.Strength
	}
	for k, v := range payload.Extra {
		input[k] = v
	}

	model := c.model
	if payload.Model != "" {
		model = strings.Trim(payload.Model, "/")
	}
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("fal: encode request: %w", err)
	}
	var decoded submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+model, body, &decoded); err != nil {
		return "", err
	}
	if decoded.RequestID == "" {
		return "", fmt.Errorf("fal: %w: empty request id", domain.ErrProviderFailure)
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", decoded.RequestID).
		Msg("fal: request queued")
	return decoded.RequestID, nil
}

// Poll maps the queue status onto the normalized state set, fetching the
// result payload once the request has completed.
func (c *Client) Poll(ctx context.Context, providerJobID string) (*providers.Status, error) {
	statusURL := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, c.model, providerJobID)
	var decoded statusResponse
	if err := c.do(ctx, http.MethodGet, statusURL, nil, &decoded); err != nil {
		return nil, err
	}

	status := &providers.Status{}
	switch decoded.Status {
	case "IN_QUEUE":
		status.State = providers.StateStarting
		status.Progress = providers.ProgressQueued
	case "IN_PROGRESS":
		status.State = providers.StateProcessing
		status.Progress = providers.ProgressRunning
	case "COMPLETED":
		status.State = providers.StateSucceeded
		status.Progress = providers.ProgressDone
		resultURL, err := c.fetchResultURL(ctx, providerJobID)
		if err != nil {
			return nil, err
		}
		status.ResultURL = resultURL
	case "FAILED":
		status.State = providers.StateFailed
		status.FailureReason = decoded.Error
	default:
		return nil, fmt.Errorf("fal: unknown status %q", decoded.Status)
	}
	return status, nil
}

// fetchResultURL retrieves the completed request payload. Video models put
// the artifact at video.url, image models at images[0].url or image.url.
func (c *Client) fetchResultURL(ctx context.Context, providerJobID string) (string, error) {
	resultURL := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, c.model, providerJobID)
	var decoded resultResponse
	if err := c.do(ctx, http.MethodGet, resultURL, nil, &decoded); err != nil {
		return "", err
	}
	switch {
	case decoded.Video != nil && decoded.Video.URL != "":
		return decoded.Video.URL, nil
	case len(decoded.Images) > 0 && decoded.Images[0].URL != "":
		return decoded.Images[0].URL, nil
	case decoded.Image != nil && decoded.Image.URL != "":
		return decoded.Image.URL, nil
	}
	return "", fmt.Errorf("fal: %w: completed request has no artifact", domain.ErrProviderFailure)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fal: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: fal", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: fal: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		var detail resultResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("fal: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("fal: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("fal: decode response: %w", err)
		}
	}
	return nil
}

var _ providers.Adapter = (*Client)(nil)
