//go:build integration

package client

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/limitless-client/internal/testutil"
	"github.com/Sternrassler/limitless-client/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newRedisClient(t *testing.T, redisClient *redis.Client, mock *testutil.MockLimitless) *Client {
	t.Helper()

	cfg := DefaultConfig("integration-key", cache.NewManager(cache.NewRedisStore(redisClient)))
	cfg.BaseURL = mock.BaseURL()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockLimitless()
	defer mock.Close()
	mock.SetHandler("/api/games", testutil.NewConditionalHandler(`"games-v1"`, `[{"id":"VGC"}]`))

	client := newRedisClient(t, redisClient, mock)
	ctx := context.Background()

	// Request 1: Initial request (should hit server)
	resp1, err := client.Get(ctx, "/games")
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	io.Copy(io.Discard, resp1.Body)
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Request 1 status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}

	// Request 2: stale entry, revalidated with If-None-Match
	resp2, err := client.Get(ctx, "/games")
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	body, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if string(body) != `[{"id":"VGC"}]` {
		t.Errorf("Request 2 body = %s", body)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := mock.GetConditionalCount(); got != 1 {
		t.Errorf("conditional requests = %d, want 1", got)
	}

	// Verify Redis holds the entry under the limitless prefix
	keys, err := redisClient.Keys(ctx, cache.KeyPrefix+"*").Result()
	if err != nil {
		t.Fatalf("Redis KEYS failed: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Redis keys = %v, want exactly one", keys)
	}
}

func TestIntegration_SharedCacheAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockLimitless()
	defer mock.Close()
	mock.SetStandings("abc", testutil.NewJSONResponse(testutil.StandingsJSON("ash", 5, 1, 0)))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		client := newRedisClient(t, redisClient, mock)

		var standings []map[string]any
		if err := client.GetJSON(ctx, "/tournaments/abc/standings", &standings); err != nil {
			t.Fatalf("Run %d failed: %v", i+1, err)
		}
		if len(standings) != 1 {
			t.Errorf("Run %d: standings = %d, want 1", i+1, len(standings))
		}
	}

	if got := mock.GetPathCount("/api/tournaments/abc/standings"); got != 1 {
		t.Errorf("standings requests = %d, want 1 (second run served from redis)", got)
	}
}

func TestIntegration_CacheClear(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockLimitless()
	defer mock.Close()
	mock.SetGames(testutil.NewJSONResponse(`[]`))

	client := newRedisClient(t, redisClient, mock)
	ctx := context.Background()

	var v []any
	if err := client.GetJSON(ctx, "/games", &v); err != nil {
		t.Fatal(err)
	}

	// Unrelated keys survive a clear
	redisClient.Set(ctx, "other:key", "x", time.Minute)

	if err := client.Cache().Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if err := client.GetJSON(ctx, "/games", &v); err != nil {
		t.Fatal(err)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2 after clear", got)
	}
	if n, _ := redisClient.Exists(ctx, "other:key").Result(); n != 1 {
		t.Error("Clear removed a key outside the limitless prefix")
	}
}
