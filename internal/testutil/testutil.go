package testutil

// Package testutil holds shared helpers for integration-style tests.
// Redis-backed tests skip automatically when no server is reachable;
// set TEST_REQUIRE_REDIS=true (CI) to turn the skip into a failure.

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireRedis() bool {
	v, err := strconv.ParseBool(os.Getenv("TEST_REQUIRE_REDIS"))
	return err == nil && v
}

// SetupTestRedis creates a Redis client for testing against a dedicated
// DB index and flushes it before handing it out. Tests are skipped when
// Redis is not available.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := getEnvOrDefault("TEST_REDIS_ADDR", "localhost:6379")
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			t.Logf("warning: failed to close redis client after ping error: %v", cerr)
		}
		if requireRedis() {
			t.Fatalf("Redis not available for testing at %s: %v", addr, err)
		}
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}

	client.FlushDB(ctx)
	return client
}
