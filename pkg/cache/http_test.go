package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "valid response with all headers",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Expires":       []string{time.Now().Add(1 * time.Hour).Format(http.TimeFormat)},
					"Last-Modified": []string{time.Now().Add(-1 * time.Hour).Format(http.TimeFormat)},
					"ETag":          []string{`"abc123"`},
					"Content-Type":  []string{"application/json"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`[{"id": "VGC"}]`))),
			},
			wantErr: false,
		},
		{
			name: "response without expires header",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Content-Type": []string{"application/json"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`[{"id": "VGC"}]`))),
			},
			wantErr: false,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if entry == nil {
					t.Fatal("ResponseToEntry() returned nil entry")
				}

				// Verify body was read and restored
				if tt.resp != nil && tt.resp.Body != nil {
					body, _ := io.ReadAll(tt.resp.Body)
					if len(body) == 0 {
						t.Error("Response body was not restored")
					}
				}

				// Verify status code
				if entry.StatusCode != tt.resp.StatusCode {
					t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
				}

				// Verify ETag
				expectedETag := tt.resp.Header.Get("ETag")
				if entry.ETag != expectedETag {
					t.Errorf("ETag = %v, want %v", entry.ETag, expectedETag)
				}

				// Verify expires was set (either from header or default)
				if entry.Expires.IsZero() {
					t.Error("Expires time was not set")
				}
			}
		})
	}
}

func TestFreshUntil(t *testing.T) {
	now := time.Now()
	future := now.Add(1 * time.Hour)
	past := now.Add(-1 * time.Hour)

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "valid expires header",
			headers: http.Header{"Expires": []string{future.Format(http.TimeFormat)}},
			want:    future,
		},
		{
			name:    "no caching headers uses default TTL",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "invalid expires header is already stale",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    now,
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{past.Format(http.TimeFormat)}},
			want:    now,
		},
		{
			name: "max-age wins over expires",
			headers: http.Header{
				"Cache-Control": []string{"public, max-age=60"},
				"Expires":       []string{future.Format(http.TimeFormat)},
			},
			want: now.Add(60 * time.Second),
		},
		{
			name: "max-age minus age",
			headers: http.Header{
				"Cache-Control": []string{"max-age=120"},
				"Age":           []string{"20"},
			},
			want: now.Add(100 * time.Second),
		},
		{
			name:    "huge max-age is clamped",
			headers: http.Header{"Cache-Control": []string{"max-age=99999999999"}},
			want:    now.Add(maxDeltaSeconds * time.Second),
		},
		{
			name:    "max-age beyond int64 is clamped",
			headers: http.Header{"Cache-Control": []string{"max-age=99999999999999999999"}},
			want:    now.Add(maxDeltaSeconds * time.Second),
		},
		{
			name:    "negative max-age is stale",
			headers: http.Header{"Cache-Control": []string{"max-age=-5"}},
			want:    now,
		},
		{
			name:    "no-cache is immediately stale",
			headers: http.Header{"Cache-Control": []string{"no-cache"}},
			want:    now,
		},
		{
			name:    "last-modified heuristic",
			headers: http.Header{"Last-Modified": []string{now.Add(-10 * time.Hour).Format(http.TimeFormat)}},
			want:    now.Add(1 * time.Hour),
		},
		{
			name:    "last-modified heuristic is capped",
			headers: http.Header{"Last-Modified": []string{now.Add(-30 * 24 * time.Hour).Format(http.TimeFormat)}},
			want:    now.Add(MaxHeuristicTTL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := freshUntil(tt.headers, now)
			diff := got.Sub(tt.want)
			if diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("freshUntil() = %v, want approximately %v (diff: %v)", got, tt.want, diff)
			}
		})
	}
}

func TestIsStorable(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		want bool
	}{
		{name: "nil", resp: nil, want: false},
		{name: "200", resp: &http.Response{StatusCode: 200, Header: http.Header{}}, want: true},
		{name: "404", resp: &http.Response{StatusCode: 404, Header: http.Header{}}, want: false},
		{
			name: "no-store",
			resp: &http.Response{StatusCode: 200, Header: http.Header{"Cache-Control": []string{"private, no-store"}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStorable(tt.resp); got != tt.want {
				t.Errorf("IsStorable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte(`[{"id":"t1"}]`),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}

	resp := EntryToResponse(entry, nil)
	body, _ := io.ReadAll(resp.Body)

	if string(body) != string(entry.Data) {
		t.Errorf("body = %s, want %s", body, entry.Data)
	}
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Error("X-Cache header should be HIT")
	}
	if entry.Headers.Get("X-Cache") != "" {
		t.Error("EntryToResponse must not mutate the entry headers")
	}
	if resp.ContentLength != int64(len(entry.Data)) {
		t.Errorf("ContentLength = %d", resp.ContentLength)
	}
}

func TestShouldMakeConditionalRequest(t *testing.T) {
	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{
			name:  "nil entry",
			entry: nil,
			want:  false,
		},
		{
			name: "entry with ETag",
			entry: &CacheEntry{
				ETag: `"abc123"`,
			},
			want: true,
		},
		{
			name: "entry with Last-Modified",
			entry: &CacheEntry{
				LastModified: time.Now(),
			},
			want: true,
		},
		{
			name: "entry with both ETag and Last-Modified",
			entry: &CacheEntry{
				ETag:         `"abc123"`,
				LastModified: time.Now(),
			},
			want: true,
		},
		{
			name: "entry without ETag or Last-Modified",
			entry: &CacheEntry{
				Data: []byte("data"),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.want {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name       string
		entry      *CacheEntry
		wantHeader string
		wantValue  string
	}{
		{
			name: "add If-None-Match with ETag",
			entry: &CacheEntry{
				ETag: `"abc123"`,
			},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name: "add If-Modified-Since with Last-Modified",
			entry: &CacheEntry{
				LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name: "prefer ETag over Last-Modified",
			entry: &CacheEntry{
				ETag:         `"abc123"`,
				LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "https://play.limitlesstcg.com/api/games", nil)
			AddConditionalHeaders(req, tt.entry)

			if tt.wantHeader != "" {
				got := req.Header.Get(tt.wantHeader)
				if got != tt.wantValue {
					t.Errorf("Header %s = %v, want %v", tt.wantHeader, got, tt.wantValue)
				}
			}
		})
	}
}

func TestAddConditionalHeaders_NilInputs(t *testing.T) {
	// Should not panic with nil inputs
	AddConditionalHeaders(nil, &CacheEntry{ETag: "test"})
	AddConditionalHeaders(&http.Request{}, nil)
}
