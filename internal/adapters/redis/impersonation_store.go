package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatherhq/hub-api/internal/ports"
)

// ImpersonationStore persists the impersonation overlay per acting
// session. Entries expire on their own so an abandoned overlay cannot
// outlive the workday; explicit Stop and sign-out delete them earlier.
type ImpersonationStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewImpersonationStore creates a Redis-backed impersonation store.
func NewImpersonationStore(client redis.UniversalClient, ttl time.Duration) *ImpersonationStore {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &ImpersonationStore{
		client: client,
		prefix: "impersonation:",
		ttl:    ttl,
	}
}

func (s *ImpersonationStore) Get(ctx context.Context, sessionID string) (*ports.ImpersonationState, error) {
	if sessionID == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state ports.ImpersonationState
	if unmarshalErr := json.Unmarshal([]byte(data), &state); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal impersonation state: %w", unmarshalErr)
	}
	return &state, nil
}

func (s *ImpersonationStore) Set(ctx context.Context, sessionID string, state ports.ImpersonationState) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if state.AsUserID == "" {
		return errors.New("impersonation target cannot be empty")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal impersonation state: %w", err)
	}
	return s.client.Set(ctx, s.prefix+sessionID, data, s.ttl).Err()
}

func (s *ImpersonationStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
