package ports

import (
	"context"
	"time"

	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
)

// TenantStore loads tenant records including settings and the license
// snapshot.
type TenantStore interface {
	GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

// MembershipStore persists tenant memberships. Role and status values
// returned from a store are already canonical: normalization happens at
// the store boundary, the single ingestion point for raw tokens.
// Get returns (nil, nil) when no membership exists; absence is a valid
// state, not a failure.
type MembershipStore interface {
	Get(ctx context.Context, tenantID, userID string) (*member.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]member.Membership, error)
	Upsert(ctx context.Context, m member.Membership) (*member.Membership, error)
	UpdateRoleStatus(ctx context.Context, m member.Membership) (*member.Membership, error)
	Delete(ctx context.Context, tenantID, userID string) error
}

// DirectoryCache caches a user's membership list. Entries are keyed
// strictly by user id; cross-user sharing is forbidden.
type DirectoryCache interface {
	Get(ctx context.Context, userID string) ([]member.Membership, bool, error)
	Set(ctx context.Context, userID string, memberships []member.Membership) error
	Invalidate(ctx context.Context, userID string) error
}

// ImpersonationState is the overlay a platform operator activates to act
// as a specific member. TenantID empty means "any tenant".
type ImpersonationState struct {
	AsUserID  string    `json:"as_user_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// ImpersonationStore persists the impersonation overlay per acting
// session. Get returns (nil, nil) when no overlay is set.
type ImpersonationStore interface {
	Get(ctx context.Context, sessionID string) (*ImpersonationState, error)
	Set(ctx context.Context, sessionID string, state ImpersonationState) error
	Delete(ctx context.Context, sessionID string) error
}
