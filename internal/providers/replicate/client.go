// Package replicate implements the providers.Adapter contract against the
// Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"luxgen/internal/domain"
	"luxgen/internal/infra"
	"luxgen/internal/providers"
)

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	BaseURL        string
	Model          string // "owner/name"
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate API.
type Client struct {
	apiToken   string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIToken) == "" {
		return nil, ErrMissingAPIToken
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
		baseURL = "https://api.replicate.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "kwaivgi/kling-v1.6-pro"
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
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name identifies the provider in job records.
func (c *Client) Name() string {
	return string(domain.ProviderReplicate)
}

type modelResponse struct {
	LatestVersion struct {
		ID string `json:"id"`
	} `json:"latest_version"`
}

type predictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

// Submit resolves the configured model to its current version and creates a
// prediction. Version resolution runs on every submission because Replicate
// deprecates versions; a stale cached handle would fail mid-flight.
func (c *Client) Submit(ctx context.Context, payload providers.Payload) (string, error) {
	version, err := c.resolveVersion(ctx)
	if err != nil {
		return "", err
	}

	input := map[string]any{}
	if p := strings.TrimSpace(payload.Prompt); p != "" {
		input["prompt"] = p
	}
	if payload.ImageURL != "" {
		input["start_image"] = payload.ImageURL
	}
	if payload.EndImageURL != "" {
		input["end_image"] = payload.EndImageURL
	}
	if payload.AspectRatio != "" {
		input["aspect_ratio"] = payload.AspectRatio
	}
	if payload.Duration != "" {
		if d, err := strconv.Atoi(payload.Duration); err == nil {
			input["duration"] = d
		}
	}
	if payload.Seed > 0 {
		input["seed"] = payload.Seed
	}
	if payload.Strength > 0 {
		input["prompt_strength"] = payload.Strength
	}
	for k, v := range payload.Extra {
		input[k] = v
	}

	body, err := json.Marshal(predictionRequest{Version: version, Input: input})
	if err != nil {
		return "", fmt.Errorf("replicate: encode request: %w", err)
	}
	var decoded predictionResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("replicate: %w: empty prediction id", domain.ErrProviderFailure)
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("prediction_id", decoded.ID).
		Msg("replicate: prediction created")
	return decoded.ID, nil
}

// Poll fetches the prediction and normalizes its status.
func (c *Client) Poll(ctx context.Context, providerJobID string) (*providers.Status, error) {
	var decoded predictionResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+providerJobID, nil, &decoded); err != nil {
		return nil, err
	}

	status := &providers.Status{}
	switch decoded.Status {
	case "starting":
		status.State = providers.StateStarting
		status.Progress = providers.ProgressQueued
	case "processing":
		status.State = providers.StateProcessing
		status.Progress = providers.ProgressRunning
	case "succeeded":
		status.State = providers.StateSucceeded
		status.Progress = providers.ProgressDone
		status.ResultURL = firstOutputURL(decoded.Output)
	case "failed":
		status.State = providers.StateFailed
		status.FailureReason = decoded.Error
	case "canceled":
		status.State = providers.StateCanceled
	default:
		return nil, fmt.Errorf("replicate: unknown status %q", decoded.Status)
	}
	return status, nil
}

// resolveVersion looks up the model's latest version id.
func (c *Client) resolveVersion(ctx context.Context) (string, error) {
	var decoded modelResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/models/"+c.model, nil, &decoded); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrModelResolution, c.model, err)
	}
	version := strings.TrimSpace(decoded.LatestVersion.ID)
	if version == "" {
		return "", fmt.Errorf("%w: %s has no published version", domain.ErrModelResolution, c.model)
	}
	return version, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: replicate: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: replicate", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: replicate: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		var detail predictionResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("replicate: decode response: %w", err)
		}
	}
	return nil
}

// firstOutputURL handles both output shapes Replicate uses: a single URL
// string or an array of URL strings.
func firstOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

var _ providers.Adapter = (*Client)(nil)
