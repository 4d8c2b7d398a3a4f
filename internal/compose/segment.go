package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrMissingSegmentationKey indicates the segmenter has no credentials.
var ErrMissingSegmentationKey = errors.New("compose: segmentation api key is required")

// Segmenter calls the external background-removal service. A failed cut-out
// aborts the whole pipeline: compositing an object with its background still
// attached would corrupt the final video.
type Segmenter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// SegmenterOptions configures a Segmenter.
type SegmenterOptions struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// NewSegmenter validates options and constructs the client.
func NewSegmenter(opts SegmenterOptions) (*Segmenter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingSegmentationKey
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = "https://api.remove.bg/v1.0/removebg"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Segmenter{endpoint: endpoint, apiKey: strings.TrimSpace(opts.APIKey), httpClient: httpClient}, nil
}

// RemoveBackground submits the product image URL and returns the transparent
// PNG cut-out bytes.
func (s *Segmenter) RemoveBackground(ctx context.Context, imageURL string) ([]byte, error) {
	var body strings.Builder
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("image_url", imageURL); err != nil {
		return nil, fmt.Errorf("compose: build segmentation form: %w", err)
	}
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, fmt.Errorf("compose: build segmentation form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compose: build segmentation form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, fmt.Errorf("compose: build segmentation request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compose: segmentation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("compose: segmentation status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	cutout, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("compose: read segmentation response: %w", err)
	}
	if len(cutout) == 0 {
		return nil, errors.New("compose: segmentation returned empty cut-out")
	}
	return cutout, nil
}
