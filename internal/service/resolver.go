package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
	"github.com/gatherhq/hub-api/internal/ports"
)

// Resolution is the answer to "who is this user within this community".
// Loading marks an in-flight or failed resolution; access checks must
// treat it as "don't know yet", never as an implicit grant.
type Resolution struct {
	Loading      bool
	Tenant       *tenant.Tenant
	Membership   *member.Membership
	PlatformRole domainauth.PlatformRole
	// ActingAs holds the impersonated user id while a platform operator
	// is acting as a member; empty otherwise.
	ActingAs string
	// Generation orders resolutions; a snapshot with a lower generation
	// than the resolver's current one is stale.
	Generation uint64
}

// MembershipResolverOptions groups dependencies for MembershipResolver.
type MembershipResolverOptions struct {
	Tenants        ports.TenantStore
	Memberships    ports.MembershipStore
	Impersonations ports.ImpersonationStore
	Logger         *slog.Logger
}

// MembershipResolver computes the effective membership of a session
// within a tenant. Each Resolve call opens a new generation; a call
// whose generation has been superseded by the time it completes is
// discarded, so rapid tenant switches can never publish a stale
// snapshot over a newer one.
//
// Rules, in order: an active impersonation overlay substitutes the
// target user's stored membership and demotes the platform role to
// plain user for the duration; a platform operator otherwise gets a
// virtual owner membership; everyone else gets their stored membership
// or nil.
type MembershipResolver struct {
	tenants        ports.TenantStore
	memberships    ports.MembershipStore
	impersonations ports.ImpersonationStore
	logger         *slog.Logger

	mu         sync.Mutex
	generation uint64
	current    Resolution
}

// NewMembershipResolver constructs a new MembershipResolver.
func NewMembershipResolver(opts MembershipResolverOptions) *MembershipResolver {
	return &MembershipResolver{
		tenants:        opts.Tenants,
		memberships:    opts.Memberships,
		impersonations: opts.Impersonations,
		logger:         opts.Logger,
	}
}

// Current returns the latest committed resolution snapshot.
func (r *MembershipResolver) Current() Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Resolve computes the resolution of sess (nil for anonymous) within
// the community named by slug. The returned resolution is also
// committed as Current unless a newer Resolve started in the meantime.
func (r *MembershipResolver) Resolve(ctx context.Context, slug string, sess *domainauth.Session) (Resolution, error) {
	gen := r.begin()

	res, err := r.compute(ctx, slug, sess)
	res.Generation = gen
	if err != nil {
		// Failed resolutions stay in the loading state; access checks
		// defer rather than grant or redirect on partial knowledge.
		res.Loading = true
		r.commit(res)
		return res, err
	}

	r.commit(res)
	return res, nil
}

// begin opens a new generation and publishes a loading snapshot for it.
func (r *MembershipResolver) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.current = Resolution{Loading: true, Generation: r.generation}
	return r.generation
}

// commit publishes res unless it has been superseded. Stale completions
// are dropped silently.
func (r *MembershipResolver) commit(res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Generation != r.generation {
		return
	}
	r.current = res
}

func (r *MembershipResolver) compute(ctx context.Context, slug string, sess *domainauth.Session) (Resolution, error) {
	t, err := r.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return Resolution{}, apperrors.NotFoundf("community %q not found", slug)
		}
		return Resolution{}, fmt.Errorf("resolve tenant %q: %w", slug, err)
	}

	if sess == nil {
		return Resolution{Tenant: t}, nil
	}

	res := Resolution{Tenant: t, PlatformRole: sess.PlatformRole}

	if sess.IsSuperAdmin() {
		overlay, overlayErr := r.lookupOverlay(ctx, sess.ID, t.ID)
		if overlayErr != nil {
			return Resolution{Tenant: t}, overlayErr
		}
		if overlay != nil {
			// Impersonation narrows: the operator sees exactly what the
			// target member sees, with no platform privilege on top.
			m, getErr := r.memberships.Get(ctx, t.ID, overlay.AsUserID)
			if getErr != nil {
				return Resolution{Tenant: t}, fmt.Errorf("resolve impersonated membership: %w", getErr)
			}
			res.PlatformRole = domainauth.PlatformRoleUser
			res.ActingAs = overlay.AsUserID
			res.Membership = m
			return res, nil
		}

		// Platform operators get a virtual owner membership so every
		// community is reachable without seeding rows.
		res.Membership = &member.Membership{
			TenantID: t.ID,
			UserID:   sess.UserID,
			Role:     member.RoleOwner,
			Status:   member.StatusActive,
		}
		return res, nil
	}

	m, err := r.memberships.Get(ctx, t.ID, sess.UserID)
	if err != nil {
		return Resolution{Tenant: t}, fmt.Errorf("resolve membership: %w", err)
	}
	res.Membership = m
	return res, nil
}

// lookupOverlay returns the active impersonation overlay for the
// session, filtered to the tenant at hand. Overlay store failures are
// logged and treated as "no overlay": the operator keeps their own
// privilege, which never widens what the impersonated user could see.
func (r *MembershipResolver) lookupOverlay(ctx context.Context, sessionID, tenantID string) (*ports.ImpersonationState, error) {
	if r.impersonations == nil {
		return nil, nil
	}
	overlay, err := r.impersonations.Get(ctx, sessionID)
	if err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "impersonation lookup failed", "session_id", sessionID, "error", err)
		}
		return nil, nil
	}
	if overlay == nil || overlay.AsUserID == "" {
		return nil, nil
	}
	if overlay.TenantID != "" && overlay.TenantID != tenantID {
		return nil, nil
	}
	if overlay.StartedAt.Before(time.Now().Add(-24 * time.Hour)) {
		// Overlays older than a day are ignored even if the store TTL
		// failed to reap them.
		return nil, nil
	}
	return overlay, nil
}

// ResolverFactory builds a resolver per client session. The per-session
// scope is what makes the generation counter meaningful: each browsing
// context races only against itself.
type ResolverFactory struct {
	Tenants        ports.TenantStore
	Memberships    ports.MembershipStore
	Impersonations ports.ImpersonationStore
	Logger         *slog.Logger
}

// New returns a fresh resolver wired to the factory's stores.
func (f *ResolverFactory) New() *MembershipResolver {
	return NewMembershipResolver(MembershipResolverOptions{
		Tenants:        f.Tenants,
		Memberships:    f.Memberships,
		Impersonations: f.Impersonations,
		Logger:         f.Logger,
	})
}
