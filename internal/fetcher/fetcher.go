// Package fetcher retrieves pipeline definitions and referenced files from
// local or remote backends, addressed by URI.
package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fetcher retrieves a file from one backend scheme.
type Fetcher interface {
	// Fetch retrieves the file at uri and returns its contents.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Supports returns true if this fetcher handles the given URI scheme.
	Supports(uri string) bool
}

// Registry routes fetch requests to the appropriate fetcher and caches
// results for its lifetime: a poll cycle may resolve the same definition
// for several jobs.
type Registry struct {
	fetchers []Fetcher
	cache    map[string][]byte
	mu       sync.RWMutex
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[string][]byte),
	}
}

// Register adds a fetcher to the registry.
func (r *Registry) Register(f Fetcher) {
	r.fetchers = append(r.fetchers, f)
}

// Fetch retrieves content from the given URI using the appropriate
// fetcher.
func (r *Registry) Fetch(ctx context.Context, uri string) ([]byte, error) {
	r.mu.RLock()
	if data, ok := r.cache[uri]; ok {
		r.mu.RUnlock()
		return data, nil
	}
	r.mu.RUnlock()

	for _, f := range r.fetchers {
		if !f.Supports(uri) {
			continue
		}

		data, err := f.Fetch(ctx, uri)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[uri] = data
		r.mu.Unlock()

		return data, nil
	}

	return nil, fmt.Errorf("no fetcher supports URI: %s", uri)
}

// ClearCache clears the fetch cache.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string][]byte)
	r.mu.Unlock()
}

// IsURI reports whether a definition reference is a fetchable URI rather
// than a plain filesystem path.
func IsURI(ref string) bool {
	for _, scheme := range []string{"file://", "s3://"} {
		if strings.HasPrefix(ref, scheme) {
			return true
		}
	}
	return false
}
