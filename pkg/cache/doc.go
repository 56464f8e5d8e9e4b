// Package cache provides HTTP response caching for the Limitless API client.
//
// The cache manager implements standard HTTP caching semantics:
//
// - Freshness from Cache-Control max-age, then Expires, then a Last-Modified heuristic
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Stale entries kept for revalidation until StaleRetention elapses
// - Cache modes (default, no-store, reload, no-cache, force-cache)
// - Pluggable, concurrency-safe storage (SQLite on disk, Redis, memory)
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	// Open the on-disk store
//	store, err := cache.NewSQLiteStore(cache.DefaultDir())
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	// Create cache manager
//	manager := cache.NewManager(store)
//
//	// Create cache key
//	key := cache.CacheKey{
//		Method:      http.MethodGet,
//		Endpoint:    "play.limitlesstcg.com/api/tournaments",
//		QueryParams: url.Values{"format": []string{"STANDARD"}},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the API
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	if entry.IsExpired() && cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// The API answers 304 if the entry is still current
//	}
//
// # Metrics
//
//   - limitless_cache_hits_total{layer} - Cache hits by store backend
//   - limitless_cache_misses_total - Cache misses
//   - limitless_cache_size_bytes{layer} - Bytes written by store backend
//   - limitless_304_responses_total - Conditional request successes
//   - limitless_conditional_requests_total - Conditional requests sent
//   - limitless_cache_errors_total{operation} - Cache operation errors
package cache
