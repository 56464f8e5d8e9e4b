package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback freshness when the response carries no
	// caching headers at all
	DefaultTTL = 5 * time.Minute

	// MaxHeuristicTTL caps the Last-Modified based heuristic freshness
	MaxHeuristicTTL = 24 * time.Hour

	// heuristicFraction of the age since Last-Modified counts as fresh
	heuristicFraction = 0.1

	// maxDeltaSeconds bounds max-age and Age values (RFC 9111 section 1.2.2)
	maxDeltaSeconds = 1<<31 - 1
)

// ResponseToEntry converts an HTTP response to a CacheEntry.
// It parses caching headers and reads the response body.
// The response body is restored after reading.
func ResponseToEntry(resp *http.Response) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	// Read body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &CacheEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now,
	}

	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	entry.Expires = freshUntil(resp.Header, now)

	return entry, nil
}

// EntryToResponse rebuilds an HTTP response from a cache entry.
// The returned response carries an X-Cache header of "HIT".
func EntryToResponse(entry *CacheEntry, req *http.Request) *http.Response {
	header := entry.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Cache", "HIT")

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// IsStorable reports whether a response may be written to the cache.
func IsStorable(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	_, noStore := parseCacheControl(resp.Header)["no-store"]
	return !noStore
}

// freshUntil computes the freshness deadline of a response.
// Precedence: Cache-Control no-cache / max-age, Expires, Last-Modified heuristic, DefaultTTL.
func freshUntil(headers http.Header, now time.Time) time.Time {
	directives := parseCacheControl(headers)

	if _, ok := directives["no-cache"]; ok {
		return now
	}

	if raw, ok := directives["max-age"]; ok {
		if seconds, ok := deltaSeconds(raw); ok {
			if seconds <= 0 {
				return now
			}
			var age int64
			if a, ok := deltaSeconds(headers.Get("Age")); ok && a > 0 {
				age = a
			}
			return now.Add(time.Duration(seconds-age) * time.Second)
		}
	}

	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		expires, err := http.ParseTime(expiresStr)
		if err != nil {
			// An invalid Expires value means already expired
			return now
		}
		if expires.Before(now) {
			return now
		}
		return expires
	}

	if lastModStr := headers.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil && lastMod.Before(now) {
			ttl := time.Duration(float64(now.Sub(lastMod)) * heuristicFraction)
			if ttl > MaxHeuristicTTL {
				ttl = MaxHeuristicTTL
			}
			return now.Add(ttl)
		}
	}

	return now.Add(DefaultTTL)
}

// deltaSeconds parses a delta-seconds value, clamping anything above
// maxDeltaSeconds so the resulting duration cannot overflow.
func deltaSeconds(raw string) (int64, bool) {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(strings.TrimSpace(raw), "-") {
			return maxDeltaSeconds, true
		}
		return 0, false
	}
	if seconds > maxDeltaSeconds {
		seconds = maxDeltaSeconds
	}
	return seconds, true
}

// parseCacheControl splits a Cache-Control header into lowercase directives.
func parseCacheControl(headers http.Header) map[string]string {
	directives := make(map[string]string)
	for _, line := range headers.Values("Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, _ := strings.Cut(part, "=")
			directives[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(strings.TrimSpace(value), `"`)
		}
	}
	return directives
}

// ShouldMakeConditionalRequest determines if we should add conditional
// request headers (If-None-Match or If-Modified-Since) based on the cache entry.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	return entry.CanRevalidate()
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since headers
// to the request if the cache entry supports conditional requests.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	// Prefer ETag over Last-Modified (more accurate)
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
