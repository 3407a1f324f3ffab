package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatherhq/hub-api/internal/domain/member"
)

// DirectoryCache caches a user's membership list. Keys are strictly
// per-user; no cross-user sharing is possible by construction. Entries
// carry a short TTL as a backstop, but correctness relies on explicit
// invalidation on sign-out, membership mutation, and impersonation
// start/stop.
type DirectoryCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewDirectoryCache creates a Redis-backed membership directory cache.
func NewDirectoryCache(client redis.UniversalClient, ttl time.Duration) *DirectoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DirectoryCache{
		client: client,
		prefix: "memberships:",
		ttl:    ttl,
	}
}

func (c *DirectoryCache) Get(ctx context.Context, userID string) ([]member.Membership, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, c.prefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var memberships []member.Membership
	if unmarshalErr := json.Unmarshal([]byte(data), &memberships); unmarshalErr != nil {
		return nil, false, fmt.Errorf("unmarshal memberships: %w", unmarshalErr)
	}
	return memberships, true, nil
}

func (c *DirectoryCache) Set(ctx context.Context, userID string, memberships []member.Membership) error {
	if userID == "" {
		return errors.New("user ID cannot be empty")
	}

	// An empty list is a valid, cacheable answer: it distinguishes
	// "known to have no memberships" from a cache miss.
	if memberships == nil {
		memberships = []member.Membership{}
	}
	data, err := json.Marshal(memberships)
	if err != nil {
		return fmt.Errorf("marshal memberships: %w", err)
	}
	return c.client.Set(ctx, c.prefix+userID, data, c.ttl).Err()
}

func (c *DirectoryCache) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+userID).Err()
}
