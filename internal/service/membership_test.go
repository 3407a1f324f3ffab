package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
	hubmocks "github.com/gatherhq/hub-api/internal/mocks/hub"
	"github.com/gatherhq/hub-api/internal/observability/audit"
)

func openTenant(id, slug string, approvalRequired bool) tenant.Tenant {
	return tenant.Tenant{
		ID:     id,
		Slug:   slug,
		Name:   slug,
		Status: tenant.StatusActive,
		Settings: tenant.Settings{
			PublicSignup:     true,
			ApprovalRequired: approvalRequired,
		},
		License: tenant.License{Status: tenant.LicenseActive},
	}
}

type membershipFixture struct {
	service   *MembershipService
	store     *hubmocks.MemoryMembershipStore
	cache     *hubmocks.MemoryDirectoryCache
	auditSink *hubmocks.RecordingAuditSink
}

func newMembershipFixture(tenants *hubmocks.MemoryTenantStore, memberships ...member.Membership) *membershipFixture {
	store := hubmocks.NewMemoryMembershipStore(memberships...)
	cache := hubmocks.NewMemoryDirectoryCache()
	sink := &hubmocks.RecordingAuditSink{}
	service := NewMembershipService(MembershipServiceOptions{
		Tenants:     tenants,
		Memberships: store,
		Directory:   NewDirectoryService(DirectoryServiceOptions{Memberships: store, Cache: cache}),
		Audit:       sink,
	})
	return &membershipFixture{service: service, store: store, cache: cache, auditSink: sink}
}

func TestMembershipService_Join_ApprovalRequired(t *testing.T) {
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(openTenant("t1", "acme", true)))

	m, err := f.service.Join(context.Background(), "acme", "u1")

	require.NoError(t, err)
	assert.Equal(t, member.RoleMember, m.Role)
	assert.Equal(t, member.StatusPending, m.Status)
	assert.Contains(t, f.cache.Invalidated, "u1")
}

func TestMembershipService_Join_NoApproval(t *testing.T) {
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(openTenant("t1", "acme", false)))

	m, err := f.service.Join(context.Background(), "acme", "u1")

	require.NoError(t, err)
	assert.Equal(t, member.StatusActive, m.Status)
}

func TestMembershipService_Join_Idempotent(t *testing.T) {
	existing := member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive,
	}
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(openTenant("t1", "acme", true)), existing)

	m, err := f.service.Join(context.Background(), "acme", "u1")

	require.NoError(t, err)
	// Re-joining must not demote an existing membership.
	assert.Equal(t, member.RoleAdmin, m.Role)
	assert.Equal(t, member.StatusActive, m.Status)
}

func TestMembershipService_Join_ClosedSignup(t *testing.T) {
	closed := openTenant("t1", "acme", false)
	closed.Settings.PublicSignup = false
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(closed))

	_, err := f.service.Join(context.Background(), "acme", "u1")

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestMembershipService_Join_LicenseGatesRegistration(t *testing.T) {
	expired := openTenant("t1", "acme", false)
	expired.License.Status = tenant.LicenseExpired
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(expired))

	_, err := f.service.Join(context.Background(), "acme", "u1")

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestMembershipService_Join_UnknownTenant(t *testing.T) {
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore())

	_, err := f.service.Join(context.Background(), "nope", "u1")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMembershipService_Join_RequiresUser(t *testing.T) {
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore(openTenant("t1", "acme", false)))

	_, err := f.service.Join(context.Background(), "acme", "")

	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestMembershipService_SetRoleStatus(t *testing.T) {
	ctx := context.Background()
	f := newMembershipFixture(
		hubmocks.NewMemoryTenantStore(openTenant("t1", "acme", true)),
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusPending},
	)

	updated, err := f.service.SetRoleStatus(ctx, SetRoleStatusInput{
		Actor:        *operatorSession("admin"),
		TenantID:     "t1",
		TargetUserID: "u1",
		Role:         "moderator",
		Status:       "active",
	})

	require.NoError(t, err)
	assert.Equal(t, member.RoleModerator, updated.Role)
	assert.Equal(t, member.StatusActive, updated.Status)
	assert.Contains(t, f.cache.Invalidated, "u1")

	events := f.auditSink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionMembershipChanged, events[0].Action)
	assert.Equal(t, "admin", events[0].ActorUserID)
	assert.Equal(t, "u1", events[0].TargetUserID)
}

func TestMembershipService_SetRoleStatus_LegacyAliases(t *testing.T) {
	f := newMembershipFixture(
		hubmocks.NewMemoryTenantStore(),
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusPending},
	)

	updated, err := f.service.SetRoleStatus(context.Background(), SetRoleStatusInput{
		Actor:        *operatorSession("admin"),
		TenantID:     "t1",
		TargetUserID: "u1",
		Role:         "supervisor",
		Status:       "ACTIVE",
	})

	require.NoError(t, err)
	assert.Equal(t, member.RoleModerator, updated.Role)
}

func TestMembershipService_SetRoleStatus_UnknownTokensFallBack(t *testing.T) {
	f := newMembershipFixture(
		hubmocks.NewMemoryTenantStore(),
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive},
	)

	updated, err := f.service.SetRoleStatus(context.Background(), SetRoleStatusInput{
		Actor:        *operatorSession("admin"),
		TenantID:     "t1",
		TargetUserID: "u1",
		Role:         "wizard",
		Status:       "frozen",
	})

	require.NoError(t, err)
	assert.Equal(t, member.RoleMember, updated.Role)
	assert.Equal(t, member.StatusPending, updated.Status)
}

func TestMembershipService_SetRoleStatus_MissingMembership(t *testing.T) {
	f := newMembershipFixture(hubmocks.NewMemoryTenantStore())

	_, err := f.service.SetRoleStatus(context.Background(), SetRoleStatusInput{
		Actor:        *operatorSession("admin"),
		TenantID:     "t1",
		TargetUserID: "ghost",
		Role:         "member",
		Status:       "active",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMembershipService_Leave(t *testing.T) {
	ctx := context.Background()
	f := newMembershipFixture(
		hubmocks.NewMemoryTenantStore(),
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusActive},
	)

	require.NoError(t, f.service.Leave(ctx, "t1", "u1"))

	m, err := f.service.GetMember(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Contains(t, f.cache.Invalidated, "u1")

	// Leaving again is a no-op.
	assert.NoError(t, f.service.Leave(ctx, "t1", "u1"))
}
