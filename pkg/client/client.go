// Package client provides the Limitless HTTP client with credential
// headers, response caching, and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/limitless-client/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpguts"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "limitless_requests_total",
		Help: "Total Limitless API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "limitless_request_duration_seconds",
		Help:    "Limitless API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "limitless_errors_total",
		Help: "Total Limitless API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the root of the public Limitless API.
	DefaultBaseURL = "https://play.limitlesstcg.com/api"

	// HeaderAccessKey carries the credential on every request.
	HeaderAccessKey = "X-Access-Key"

	// DefaultRequestTimeout bounds a single request, including reading the body.
	DefaultRequestTimeout = 30 * time.Second
)

// Client is the Limitless API client. It is safe for concurrent use: the
// configuration is immutable after New and the cache store synchronizes
// internally.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	headers    http.Header
	cache      *cache.Manager
	mode       cache.Mode
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Credential is sent as X-Access-Key (REQUIRED)
	Credential string

	// BaseURL is the API root (default: DefaultBaseURL)
	BaseURL string

	// UserAgent header
	UserAgent string

	// Headers are extra default headers attached to every request
	Headers map[string]string

	// Cache stores responses; nil disables caching
	Cache *cache.Manager

	// CacheMode selects when cached responses are reused
	CacheMode cache.Mode

	// RequestTimeout bounds a single request (default: DefaultRequestTimeout)
	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(credential string, manager *cache.Manager) Config {
	return Config{
		Credential:     credential,
		BaseURL:        DefaultBaseURL,
		UserAgent:      "limitless-client/0.1.0",
		Cache:          manager,
		CacheMode:      cache.ModeDefault,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// New creates a new Limitless client. It validates the credential before
// anything else, so a misconfigured process never reaches the network.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Credential) == "" {
		return nil, ErrMissingCredential
	}
	if !httpguts.ValidHeaderFieldValue(cfg.Credential) {
		return nil, ErrInvalidCredential
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	if cfg.CacheMode == "" {
		cfg.CacheMode = cache.ModeDefault
	}
	if _, err := cache.ParseMode(string(cfg.CacheMode)); err != nil {
		return nil, err
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	headers := http.Header{}
	headers.Set(HeaderAccessKey, cfg.Credential)
	headers.Set("Accept", "application/json")
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}
	for k, v := range cfg.Headers {
		if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
			return nil, fmt.Errorf("invalid default header %q", k)
		}
		headers.Set(k, v)
	}

	logger := log.With().Str("component", "limitless-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: base,
		headers: headers,
		cache:   cfg.Cache,
		mode:    cfg.CacheMode,
		logger:  logger,
	}, nil
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a header on one request, overriding the defaults.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Do performs an HTTP request with credential headers and caching.
// Non-2xx responses are returned as-is; only transport failures are errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.endpointLabel(req.URL.Path)
	target := req.URL.String()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Default headers, request-specific values win
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), v...)
		}
	}

	// Step 2: Check Cache
	var (
		cacheKey    cache.CacheKey
		cachedEntry *cache.CacheEntry
	)
	useCache := c.cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.KeyForRequest(req)
	}

	if useCache && c.mode.Reads() {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		cachedEntry = entry

		if c.mode.Serves(cachedEntry) {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", cachedEntry.TTL()).
				Msg("Serving from cache")
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return cache.EntryToResponse(cachedEntry, req), nil
		}
	}

	// Step 3: Make Conditional Request if we hold a stale entry
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Execute HTTP Request
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Limitless request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			URL:        target,
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 5: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		entry := cachedEntry
		if c.mode.Writes() {
			updated, err := c.cache.Revalidated(ctx, cacheKey, cachedEntry, resp.Header)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
			}
			if updated != nil {
				entry = updated
			}
		}
		return cache.EntryToResponse(entry, req), nil
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Limitless request error")
		return resp, nil
	}

	// Step 6: Update Cache on success
	if useCache && c.mode.Writes() && cache.IsStorable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			// The body could not be read; nothing usable to return either
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassNetwork,
				Message:    "read response body",
				URL:        target,
				Err:        err,
			}
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// classifyStatus categorizes an HTTP status for observability and handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// URL resolves an API path (e.g. "/tournaments") against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// Get performs a GET request to an API path relative to the base URL.
// The path may carry a query string.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	rawPath, rawQuery, _ := strings.Cut(path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(rawPath, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for _, opt := range opts {
		opt(req)
	}

	return c.Do(req)
}

// GetJSON performs a GET request and decodes a 2xx JSON body into v.
// Non-2xx statuses and undecodable bodies are returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, path string, v any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	target := ""
	if resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
			URL:        target,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		class := ErrorClassDecode
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			class = ErrorClassNetwork
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    "decode response",
			URL:        target,
			Err:        err,
		}
	}
	return nil
}

// endpointLabel turns a request path into a low-cardinality metric label:
// the base path is stripped and tournament ids are replaced by {id}.
func (c *Client) endpointLabel(path string) string {
	path = strings.TrimPrefix(path, strings.TrimRight(c.baseURL.Path, "/"))
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if segments[i-1] == "tournaments" {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// Mode returns the active cache mode.
func (c *Client) Mode() cache.Mode {
	return c.mode
}

// Cache returns the cache manager, or nil when caching is disabled.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Close releases the cache store, if any.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	if c.cache == nil {
		return nil
	}
	return c.cache.Store().Close()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
