package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultStaleRetention is how long an entry outlives its freshness so it
// can still be revalidated with a conditional request.
const DefaultStaleRetention = 7 * 24 * time.Hour

// Manager handles caching operations on top of a Store.
type Manager struct {
	store          Store
	staleRetention time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithStaleRetention overrides DefaultStaleRetention.
func WithStaleRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.staleRetention = d
		}
	}
}

// NewManager creates a new cache manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	m := &Manager{
		store:          store,
		staleRetention: DefaultStaleRetention,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backend.
func (m *Manager) Store() Store {
	return m.store
}

// Get retrieves a cache entry by key. Stale entries are returned as well;
// callers check IsExpired or use Mode.Serves.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	layer := m.store.Name()

	data, err := m.store.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		_ = m.store.Delete(ctx, key.String())
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(layer).Inc()
	return &entry, nil
}

// Set stores a cache entry. Entries that are already stale and carry no
// validator are useless and skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 && !entry.CanRevalidate() {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.store.Set(ctx, key.String(), data, ttl+m.staleRetention); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	CacheSize.WithLabelValues(m.store.Name()).Add(float64(len(data)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.store.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Clear removes every entry from the store.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}
	CacheSize.WithLabelValues(m.store.Name()).Set(0)
	return nil
}

// UpdateTTL updates the expiry of an existing cache entry.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}

// Revalidated refreshes entry after the server answered 304 Not Modified:
// freshness is recomputed from the 304 headers and a new validator, if
// any, replaces the old one. The updated entry is stored and returned.
func (m *Manager) Revalidated(ctx context.Context, key CacheKey, entry *CacheEntry, headers http.Header) (*CacheEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("cache entry cannot be nil")
	}
	updated := *entry
	updated.Headers = entry.Headers.Clone()
	if updated.Headers == nil {
		updated.Headers = http.Header{}
	}

	for _, name := range []string{"Cache-Control", "Expires", "ETag", "Last-Modified", "Date"} {
		if v := headers.Values(name); len(v) > 0 {
			updated.Headers[http.CanonicalHeaderKey(name)] = v
		}
	}
	if etag := headers.Get("ETag"); etag != "" {
		updated.ETag = etag
	}
	updated.Expires = freshUntil(updated.Headers, time.Now())

	return &updated, m.Set(ctx, key, &updated)
}
