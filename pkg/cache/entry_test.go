package cache

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "expired an hour ago", expires: time.Now().Add(-1 * time.Hour), want: true},
		{name: "fresh for an hour", expires: time.Now().Add(1 * time.Hour), want: false},
		{name: "just expired", expires: time.Now().Add(-1 * time.Second), want: true},
		{name: "zero deadline", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Entries built from responses take their deadline from the response's
// freshness headers.
func TestCacheEntry_FreshnessFromResponse(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		headers     http.Header
		wantExpired bool
		wantTTLMin  time.Duration
		wantTTLMax  time.Duration
	}{
		{
			name:       "max-age",
			headers:    http.Header{"Cache-Control": []string{"max-age=300"}},
			wantTTLMin: 298 * time.Second,
			wantTTLMax: 300 * time.Second,
		},
		{
			name:        "max-age=0",
			headers:     http.Header{"Cache-Control": []string{"max-age=0"}},
			wantExpired: true,
		},
		{
			name:       "last-modified heuristic",
			headers:    http.Header{"Last-Modified": []string{now.Add(-20 * time.Hour).UTC().Format(http.TimeFormat)}},
			wantTTLMin: 2*time.Hour - 5*time.Second,
			wantTTLMax: 2*time.Hour + 5*time.Second,
		},
		{
			name:       "no caching headers",
			headers:    http.Header{},
			wantTTLMin: DefaultTTL - 2*time.Second,
			wantTTLMax: DefaultTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: http.StatusOK,
				Header:     tt.headers,
				Body:       io.NopCloser(strings.NewReader(`[]`)),
			}
			entry, err := ResponseToEntry(resp)
			if err != nil {
				t.Fatalf("ResponseToEntry() error = %v", err)
			}

			if tt.wantExpired {
				// max-age=0 expires at the instant it was cached
				time.Sleep(time.Millisecond)
				if !entry.IsExpired() {
					t.Errorf("IsExpired() = false, want true (expires %v)", entry.Expires)
				}
				return
			}
			if entry.IsExpired() {
				t.Fatalf("IsExpired() = true, want fresh (expires %v)", entry.Expires)
			}
			if ttl := entry.TTL(); ttl < tt.wantTTLMin || ttl > tt.wantTTLMax {
				t.Errorf("TTL() = %v, want between %v and %v", ttl, tt.wantTTLMin, tt.wantTTLMax)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "one hour remaining",
			expires: time.Now().Add(1 * time.Hour),
			wantMin: 59 * time.Minute,
			wantMax: 61 * time.Minute,
		},
		{
			name:    "already expired",
			expires: time.Now().Add(-1 * time.Hour),
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "5 minutes remaining",
			expires: time.Now().Add(5 * time.Minute),
			wantMin: 4*time.Minute + 59*time.Second,
			wantMax: 5*time.Minute + 1*time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{
				Expires: tt.expires,
			}
			got := entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestCacheEntry_CanRevalidate(t *testing.T) {
	tests := []struct {
		name  string
		entry CacheEntry
		want  bool
	}{
		{name: "etag", entry: CacheEntry{ETag: `"v1"`}, want: true},
		{name: "last modified", entry: CacheEntry{LastModified: time.Now()}, want: true},
		{name: "no validator", entry: CacheEntry{Data: []byte("x")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.CanRevalidate(); got != tt.want {
				t.Errorf("CanRevalidate() = %v, want %v", got, tt.want)
			}
		})
	}
}
