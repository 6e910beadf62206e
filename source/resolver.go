package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrUnsupportedScheme is returned for a location without a registered scheme.
var ErrUnsupportedScheme = errors.New("source: unsupported scheme")

// Factory builds a Source from a parsed location.
type Factory func(u *url.URL) (Source, error)

// Resolver maps location strings to sources by URL scheme. Plain paths and
// file:// URLs resolve to File; http and https resolve to HTTP.
type Resolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewResolver creates a resolver with the built-in schemes registered.
func NewResolver() *Resolver {
	r := &Resolver{factories: make(map[string]Factory)}
	r.Register("file", func(u *url.URL) (Source, error) {
		return NewFile(u.Path, nil), nil
	})
	web := func(u *url.URL) (Source, error) {
		return NewHTTP(u.String()), nil
	}
	r.Register("http", web)
	r.Register("https", web)
	return r
}

// Register adds or replaces the factory for scheme.
func (r *Resolver) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = f
}

// Resolve builds the source for location.
func (r *Resolver) Resolve(location string) (Source, error) {
	if !strings.Contains(location, "://") {
		return NewFile(location, nil), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("source: parse %q: %w", location, err)
	}

	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	return f(u)
}

// ResolveAll resolves every location, keeping their order.
func (r *Resolver) ResolveAll(locations []string) ([]Source, error) {
	out := make([]Source, 0, len(locations))
	for _, loc := range locations {
		s, err := r.Resolve(loc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// BucketKey splits a bucket/key location such as s3://bucket/path/to/key.
func BucketKey(u *url.URL) (bucket, key string, err error) {
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("source: %q needs <scheme>://<bucket>/<key>", u.String())
	}
	return bucket, key, nil
}
