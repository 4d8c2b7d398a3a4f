// Package luma implements the providers.Adapter contract against the Luma
// Dream Machine API.
package luma

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
var ErrMissingAPIKey = errors.New("luma: api key is required")

// Options configures the Dream Machine client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Dream Machine API.
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
		baseURL = "https://api.lumalabs.ai"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "ray-2"
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
	return string(domain.ProviderLuma)
}

type generationRequest struct {
	Prompt      string               `json:"prompt"`
	Model       string               `json:"model,omitempty"`
	AspectRatio string               `json:"aspect_ratio,omitempty"`
	Duration    string               `json:"duration,omitempty"`
	Keyframes   map[string]*keyframe `json:"keyframes,omitempty"`
}

type keyframe struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type generationResponse struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
		Image string `json:"image"`
	} `json:"assets"`
	Detail string `json:"detail"`
}

// Submit creates a generation. Start/end images travel as frame0/frame1
// keyframes, which is how Dream Machine models image conditioning.
func (c *Client) Submit(ctx context.Context, payload providers.Payload) (string, error) {
	req := generationRequest{
		Prompt:      strings.TrimSpace(payload.Prompt),
		Model:       c.model,
		AspectRatio: payload.AspectRatio,
	}
	if payload.Duration != "" {
		req.Duration = payload.Duration + "s"
	}
	if payload.ImageURL != "" || payload.EndImageURL != "" {
		req.Keyframes = map[string]*keyframe{}
		if payload.ImageURL != "" {
			req.Keyframes["frame0"] = &keyframe{Type: "image", URL: payload.ImageURL}
		}
		if payload.EndImageURL != "" {
			req.Keyframes["frame1"] = &keyframe{Type: "image", URL: payload.EndImageURL}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("luma: encode request: %w", err)
	}
	var decoded generationResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/dream-machine/v1/generations", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("luma: %w: empty generation id", domain.ErrProviderFailure)
	}
	c.logger.Debug().
		Str("generation_id", decoded.ID).
		Str("state", decoded.State).
		Msg("luma: generation created")
	return decoded.ID, nil
}

// Poll fetches the generation and normalizes its state.
func (c *Client) Poll(ctx context.Context, providerJobID string) (*providers.Status, error) {
	var decoded generationResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/dream-machine/v1/generations/"+providerJobID, nil, &decoded); err != nil {
		return nil, err
	}

	status := &providers.Status{}
	switch decoded.State {
	case "queued":
		status.State = providers.StateStarting
		status.Progress = providers.ProgressQueued
	case "dreaming":
		status.State = providers.StateProcessing
		status.Progress = providers.ProgressRunning
	case "completed":
		status.State = providers.StateSucceeded
		status.Progress = providers.ProgressDone
		if decoded.Assets.Video != "" {
			status.ResultURL = decoded.Assets.Video
		} else {
			status.ResultURL = decoded.Assets.Image
		}
	case "failed":
		status.State = providers.StateFailed
		status.FailureReason = decoded.FailureReason
	default:
		return nil, fmt.Errorf("luma: unknown state %q", decoded.State)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("luma: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: luma: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("luma: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: luma", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: luma: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		var detail generationResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("luma: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("luma: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("luma: decode response: %w", err)
		}
	}
	return nil
}

var _ providers.Adapter = (*Client)(nil)
