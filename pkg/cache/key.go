package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// IdentityHeaders are the request headers that take part in the cache key.
// Responses fetched with a different credential never satisfy each other.
var IdentityHeaders = []string{"X-Access-Key", "Accept", "Content-Type"}

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Method is the HTTP method (empty means GET)
	Method string

	// Endpoint is host and path (e.g., "play.limitlesstcg.com/api/tournaments")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"format": "STANDARD"})
	QueryParams url.Values

	// Headers are the identity-relevant request headers
	Headers http.Header
}

// KeyForRequest builds the cache key for an outbound request.
func KeyForRequest(req *http.Request) CacheKey {
	headers := http.Header{}
	for _, name := range IdentityHeaders {
		if v := req.Header.Values(name); len(v) > 0 {
			headers[http.CanonicalHeaderKey(name)] = v
		}
	}
	return CacheKey{
		Method:      req.Method,
		Endpoint:    req.URL.Host + req.URL.Path,
		QueryParams: req.URL.Query(),
		Headers:     headers,
	}
}

// String generates a deterministic cache key string.
// Format: limitless:METHOD:endpoint:query1=val1:query2=val2:h=<digest>
//
// Example:
//
//	limitless:GET:play.limitlesstcg.com/api/tournaments:format=STANDARD:h=3f2a9c0d1e4b5a69
func (k CacheKey) String() string {
	method := k.Method
	if method == "" {
		method = http.MethodGet
	}
	parts := []string{"limitless", strings.ToUpper(method)}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		// Repeated values keep their request order and are escaped, so
		// x=a&x=b, x=b&x=a and x=a,b stay distinct.
		for _, key := range queryKeys {
			parts = append(parts, url.Values{key: k.QueryParams[key]}.Encode())
		}
	}

	if digest := k.headerDigest(); digest != "" {
		parts = append(parts, "h="+digest)
	}

	return strings.Join(parts, ":")
}

// headerDigest hashes the identity headers so credentials never appear in
// store keys.
func (k CacheKey) headerDigest() string {
	if len(k.Headers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(k.Headers))
	for name, values := range k.Headers {
		lines = append(lines, fmt.Sprintf("%s=%s", http.CanonicalHeaderKey(name), strings.Join(values, ",")))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		fmt.Fprintln(h, line)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
