package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/ports"
)

// DirectoryServiceOptions groups dependencies for DirectoryService.
type DirectoryServiceOptions struct {
	Memberships ports.MembershipStore
	Cache       ports.DirectoryCache
	Logger      *slog.Logger
}

// DirectoryService answers "which communities does this user belong to"
// with a per-user cache in front of the membership store. Cache entries
// are keyed strictly by user id and are invalidated on sign-out and on
// any membership mutation; stale reads across users must be impossible.
type DirectoryService struct {
	memberships ports.MembershipStore
	cache       ports.DirectoryCache
	logger      *slog.Logger
}

// NewDirectoryService constructs a new DirectoryService.
func NewDirectoryService(opts DirectoryServiceOptions) *DirectoryService {
	return &DirectoryService{
		memberships: opts.Memberships,
		cache:       opts.Cache,
		logger:      opts.Logger,
	}
}

// ListMemberships returns all memberships for a user, served from cache
// when possible. An empty list is a valid, cacheable answer. Cache
// failures degrade to the store; they never fail the lookup.
func (s *DirectoryService) ListMemberships(ctx context.Context, userID string) ([]member.Membership, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logWarn(ctx, "directory cache read failed", "user_id", userID, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, userID, memberships); setErr != nil {
			s.logWarn(ctx, "directory cache write failed", "user_id", userID, "error", setErr)
		}
	}
	return memberships, nil
}

// HighestPrivilegeMembership returns the user's active membership with
// the highest role rank, or nil when the user has no active membership.
// Rank ties break on tenant id so the answer is deterministic.
func (s *DirectoryService) HighestPrivilegeMembership(ctx context.Context, userID string) (*member.Membership, error) {
	memberships, err := s.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	var best *member.Membership
	for i := range memberships {
		m := memberships[i]
		if !m.IsActive() {
			continue
		}
		if best == nil ||
			m.Role.Rank() > best.Role.Rank() ||
			(m.Role.Rank() == best.Role.Rank() && m.TenantID < best.TenantID) {
			best = &memberships[i]
		}
	}
	return best, nil
}

// Invalidate drops the user's cached membership list. Called on
// sign-out, membership mutation, and impersonation changes.
func (s *DirectoryService) Invalidate(ctx context.Context, userID string) error {
	if userID == "" || s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate directory cache: %w", err)
	}
	return nil
}

func (s *DirectoryService) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
