// Package storage provides durable object storage behind a small put /
// public-url contract. Provider result URLs expire within ~24h; anything the
// user should keep must be copied through an ObjectStore.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ObjectStore persists immutable blobs under slash-separated keys and
// exposes a stable public URL for each key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
}

// MemStore keeps objects in process memory. It backs tests and local
// development where neither Supabase nor a writable disk is available.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	baseURL string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(baseURL string) *MemStore {
	if baseURL == "" {
		baseURL = "mem://bucket"
	}
	return &MemStore{objects: make(map[string][]byte), baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *MemStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[cleanKey] = append([]byte(nil), data...)
	s.puts++
	return nil
}

func (s *MemStore) PublicURL(key string) string {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return ""
	}
	return s.baseURL + "/" + cleanKey
}

// Get returns a stored object, or nil when absent.
func (s *MemStore) Get(key string) []byte {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[cleanKey]
}

// Keys lists stored keys in sorted order.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts reports the number of successful writes, including overwrites.
func (s *MemStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

var _ ObjectStore = (*MemStore)(nil)
