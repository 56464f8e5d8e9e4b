// Package testutil provides testing utilities for the Limitless client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockLimitless is a configurable mock Limitless API server for testing.
// Routes are registered by path relative to the server root, e.g.
// "/api/tournaments".
type MockLimitless struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	ConditionalCount  int
	PathCounts        map[string]int
	PathHeaders       map[string]http.Header
	LastRequestHeader http.Header
	LastQuery         map[string][]string
}

// NewMockLimitless creates a new mock Limitless server.
func NewMockLimitless() *MockLimitless {
	mock := &MockLimitless{
		handlers:    make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts:  make(map[string]int),
		PathHeaders: make(map[string]http.Header),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.PathHeaders[r.URL.Path] = mock.LastRequestHeader
		mock.LastQuery = r.URL.Query()

		// Track conditional requests
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLimitless) URL() string {
	return m.server.URL
}

// BaseURL returns the API root to configure clients with.
func (m *MockLimitless) BaseURL() string {
	return m.server.URL + "/api"
}

// Close shuts down the mock server.
func (m *MockLimitless) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockLimitless) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.PathCounts = make(map[string]int)
	m.PathHeaders = make(map[string]http.Header)
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockLimitless) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockLimitless) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetTournaments configures the tournament list endpoint.
func (m *MockLimitless) SetTournaments(resp MockResponse) {
	m.SetResponse("/api/tournaments", resp)
}

// SetStandings configures the standings endpoint of one tournament.
func (m *MockLimitless) SetStandings(tournamentID string, resp MockResponse) {
	m.SetResponse(fmt.Sprintf("/api/tournaments/%s/standings", tournamentID), resp)
}

// SetGames configures the games catalog endpoint.
func (m *MockLimitless) SetGames(resp MockResponse) {
	m.SetResponse("/api/games", resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockLimitless) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockLimitless) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetPathHeader returns the headers of the last request to path, or nil.
func (m *MockLimitless) GetPathHeader(path string) http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathHeaders[path]
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockLimitless) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockLimitless) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockLimitless) GetLastQuery() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// NewJSONResponse creates a 200 OK response cacheable for five minutes.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Cache-Control": "public, max-age=300",
			"ETag":          `"test-etag-123"`,
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewUncacheableResponse creates a 200 OK response marked no-store.
func NewUncacheableResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Cache-Control": "no-store",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response as sent for a bad access key.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": "Invalid access key"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler creates a handler that answers 304 when the client
// presents etag, and a fresh-for-zero-seconds 200 otherwise so every call
// revalidates.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "max-age=0")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

// TournamentsJSON renders a tournament list body for the given ids.
func TournamentsJSON(ids ...string) string {
	type tournament struct {
		ID string `json:"id"`
	}
	list := make([]tournament, 0, len(ids))
	for _, id := range ids {
		list = append(list, tournament{ID: id})
	}
	data, _ := json.Marshal(list)
	return string(data)
}

// StandingsJSON renders a small, valid standings body.
func StandingsJSON(player string, wins, losses, ties int) string {
	return fmt.Sprintf(`[{
		"player": %q,
		"name": %q,
		"placing": 1,
		"record": {"wins": %d, "losses": %d, "ties": %d},
		"decklist": [
			{"id": "pikachu", "name": "Pikachu", "item": "Light Ball", "tera": "Electric", "ability": "Static", "attacks": ["Thunderbolt", "Protect"]}
		]
	}]`, player, player, wins, losses, ties)
}
