// Package persist copies ephemeral provider artifacts into durable object
// storage. Provider URLs expire within roughly a day; a job's result is only
// safe once it lives under a key this system controls.
package persist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"luxgen/internal/infra"
	"luxgen/internal/storage"
)

// Persister downloads temporary provider artifacts and re-uploads them.
type Persister struct {
	store      storage.ObjectStore
	httpClient *http.Client
	logger     infra.Logger
}

// New constructs a Persister. A nil httpClient gets a generous timeout since
// video bodies run to tens of megabytes.
func New(store storage.ObjectStore, httpClient *http.Client, logger infra.Logger) *Persister {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Persister{store: store, httpClient: httpClient, logger: logger}
}

// Key builds the durable storage key for a job artifact:
// videos/{user_id}/{kind}_{timestamp}_{provider}.{ext}.
func Key(userID, kind, provider, tempURL string) string {
	return fmt.Sprintf("videos/%s/%s_%d_%s%s", userID, kind, time.Now().UnixMilli(), provider, extFromURL(tempURL))
}

// Persist downloads the full body at tempURL, uploads it unmodified at key,
// and returns the stable public URL. Callers guard idempotence at the job
// level by checking for an existing durable result_url first.
func (p *Persister) Persist(ctx context.Context, tempURL, key string) (string, error) {
	data, contentType, err := p.download(ctx, tempURL)
	if err != nil {
		return "", err
	}
	if err := p.store.Put(ctx, key, contentType, data); err != nil {
		return "", fmt.Errorf("persist: upload %s: %w", key, err)
	}
	durableURL := p.store.PublicURL(key)
	p.logger.Info().
		Str("key", key).
		Int("bytes", len(data)).
		Msg("persist: artifact made durable")
	return durableURL, nil
}

// Owns reports whether url already points at this store rather than at a
// provider's temporary location.
func (p *Persister) Owns(url string) bool {
	base := strings.TrimSuffix(p.store.PublicURL("probe"), "/probe")
	return base != "" && strings.HasPrefix(url, base)
}

func (p *Persister) download(ctx context.Context, tempURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tempURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("persist: build download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("persist: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("persist: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("persist: read body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func extFromURL(rawURL string) string {
	clean := rawURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	ext := strings.ToLower(path.Ext(clean))
	switch ext {
	case ".mp4", ".webm", ".mov", ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return ext
	}
	return ".mp4"
}
