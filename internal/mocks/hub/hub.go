package hub

// Package hub contains hand-written in-memory test doubles for tenant,
// membership, cache, impersonation, and audit ports.

import (
	"context"
	"sync"

	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
	"github.com/gatherhq/hub-api/internal/observability/audit"
	"github.com/gatherhq/hub-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TenantStore        = (*MemoryTenantStore)(nil)
	_ ports.MembershipStore    = (*MemoryMembershipStore)(nil)
	_ ports.DirectoryCache     = (*MemoryDirectoryCache)(nil)
	_ ports.ImpersonationStore = (*MemoryImpersonationStore)(nil)
	_ audit.Sink               = (*RecordingAuditSink)(nil)
)

// ErrTenantNotFound is returned when a slug does not resolve.
var ErrTenantNotFound error = apperrors.NotFound("tenant not found")

// MemoryTenantStore serves tenants from a map keyed by slug.
type MemoryTenantStore struct {
	mu      sync.Mutex
	tenants map[string]tenant.Tenant

	// GetErr, when set, is returned by every GetBySlug call.
	GetErr error
}

func NewMemoryTenantStore(tenants ...tenant.Tenant) *MemoryTenantStore {
	s := &MemoryTenantStore{tenants: make(map[string]tenant.Tenant)}
	for _, t := range tenants {
		s.tenants[t.Slug] = t
	}
	return s
}

func (s *MemoryTenantStore) Put(t tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.Slug] = t
}

func (s *MemoryTenantStore) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	t, ok := s.tenants[slug]
	if !ok || t.Removed() {
		return nil, ErrTenantNotFound
	}
	out := t
	return &out, nil
}

type membershipKey struct {
	tenantID string
	userID   string
}

// MemoryMembershipStore holds memberships keyed by (tenant, user).
type MemoryMembershipStore struct {
	mu          sync.Mutex
	memberships map[membershipKey]member.Membership

	// Errs, when set, are returned by the matching operation.
	GetErr  error
	ListErr error
}

func NewMemoryMembershipStore(memberships ...member.Membership) *MemoryMembershipStore {
	s := &MemoryMembershipStore{memberships: make(map[membershipKey]member.Membership)}
	for _, m := range memberships {
		s.memberships[membershipKey{m.TenantID, m.UserID}] = m
	}
	return s
}

func (s *MemoryMembershipStore) Get(_ context.Context, tenantID, userID string) (*member.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	m, ok := s.memberships[membershipKey{tenantID, userID}]
	if !ok {
		return nil, nil
	}
	out := m
	return &out, nil
}

func (s *MemoryMembershipStore) ListByUser(_ context.Context, userID string) ([]member.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := []member.Membership{}
	for k, m := range s.memberships {
		if k.userID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryMembershipStore) Upsert(_ context.Context, m member.Membership) (*member.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[membershipKey{m.TenantID, m.UserID}] = m
	out := m
	return &out, nil
}

func (s *MemoryMembershipStore) UpdateRoleStatus(_ context.Context, m member.Membership) (*member.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{m.TenantID, m.UserID}
	existing, ok := s.memberships[key]
	if !ok {
		return nil, apperrors.NotFound("membership not found")
	}
	existing.Role = m.Role
	existing.Status = m.Status
	s.memberships[key] = existing
	out := existing
	return &out, nil
}

func (s *MemoryMembershipStore) Delete(_ context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships, membershipKey{tenantID, userID})
	return nil
}

// MemoryDirectoryCache is a map-backed directory cache. It records
// invalidations so tests can assert the security-sensitive ones happen.
type MemoryDirectoryCache struct {
	mu      sync.Mutex
	entries map[string][]member.Membership

	Invalidated []string
}

func NewMemoryDirectoryCache() *MemoryDirectoryCache {
	return &MemoryDirectoryCache{entries: make(map[string][]member.Membership)}
}

func (c *MemoryDirectoryCache) Get(_ context.Context, userID string) ([]member.Membership, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	out := make([]member.Membership, len(entry))
	copy(out, entry)
	return out, true, nil
}

func (c *MemoryDirectoryCache) Set(_ context.Context, userID string, memberships []member.Membership) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := make([]member.Membership, len(memberships))
	copy(entry, memberships)
	c.entries[userID] = entry
	return nil
}

func (c *MemoryDirectoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.Invalidated = append(c.Invalidated, userID)
	return nil
}

// MemoryImpersonationStore keeps impersonation overlays by session id.
type MemoryImpersonationStore struct {
	mu     sync.Mutex
	states map[string]ports.ImpersonationState
}

func NewMemoryImpersonationStore() *MemoryImpersonationStore {
	return &MemoryImpersonationStore{states: make(map[string]ports.ImpersonationState)}
}

func (s *MemoryImpersonationStore) Get(_ context.Context, sessionID string) (*ports.ImpersonationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		return nil, nil
	}
	out := state
	return &out, nil
}

func (s *MemoryImpersonationStore) Set(_ context.Context, sessionID string, state ports.ImpersonationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = state
	return nil
}

func (s *MemoryImpersonationStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

// RecordingAuditSink captures emitted events for assertions.
type RecordingAuditSink struct {
	mu     sync.Mutex
	events []audit.Event

	// EmitErr, when set, is returned by Emit.
	EmitErr error
}

func (s *RecordingAuditSink) Emit(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EmitErr != nil {
		return s.EmitErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *RecordingAuditSink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
