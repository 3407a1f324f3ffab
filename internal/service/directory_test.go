package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhq/hub-api/internal/domain/member"
	hubmocks "github.com/gatherhq/hub-api/internal/mocks/hub"
)

func TestDirectoryService_ListMemberships_CachesResult(t *testing.T) {
	ctx := context.Background()
	store := hubmocks.NewMemoryMembershipStore(
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusActive},
	)
	cache := hubmocks.NewMemoryDirectoryCache()
	service := NewDirectoryService(DirectoryServiceOptions{Memberships: store, Cache: cache})

	first, err := service.ListMemberships(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	// Second read is served from cache even if the store fails.
	store.ListErr = errors.New("store down")
	second, err := service.ListMemberships(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDirectoryService_ListMemberships_EmptyListIsCached(t *testing.T) {
	ctx := context.Background()
	store := hubmocks.NewMemoryMembershipStore()
	cache := hubmocks.NewMemoryDirectoryCache()
	service := NewDirectoryService(DirectoryServiceOptions{Memberships: store, Cache: cache})

	memberships, err := service.ListMemberships(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, memberships)

	_, hit, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, hit, "a user with no memberships is a valid, cacheable answer")
}

func TestDirectoryService_ListMemberships_RequiresUserID(t *testing.T) {
	service := NewDirectoryService(DirectoryServiceOptions{
		Memberships: hubmocks.NewMemoryMembershipStore(),
	})

	_, err := service.ListMemberships(context.Background(), "")
	require.Error(t, err)
}

func TestDirectoryService_HighestPrivilegeMembership(t *testing.T) {
	ctx := context.Background()
	store := hubmocks.NewMemoryMembershipStore(
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusActive},
		member.Membership{TenantID: "t2", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive},
		// Higher rank but not active; must not win.
		member.Membership{TenantID: "t3", UserID: "u1", Role: member.RoleOwner, Status: member.StatusSuspended},
	)
	service := NewDirectoryService(DirectoryServiceOptions{Memberships: store})

	best, err := service.HighestPrivilegeMembership(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "t2", best.TenantID)
	assert.Equal(t, member.RoleAdmin, best.Role)
}

func TestDirectoryService_HighestPrivilegeMembership_TieBreaksOnTenant(t *testing.T) {
	store := hubmocks.NewMemoryMembershipStore(
		member.Membership{TenantID: "t-b", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive},
		member.Membership{TenantID: "t-a", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive},
	)
	service := NewDirectoryService(DirectoryServiceOptions{Memberships: store})

	best, err := service.HighestPrivilegeMembership(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "t-a", best.TenantID)
}

func TestDirectoryService_HighestPrivilegeMembership_NoneActive(t *testing.T) {
	store := hubmocks.NewMemoryMembershipStore(
		member.Membership{TenantID: "t1", UserID: "u1", Role: member.RoleOwner, Status: member.StatusBanned},
	)
	service := NewDirectoryService(DirectoryServiceOptions{Memberships: store})

	best, err := service.HighestPrivilegeMembership(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestDirectoryService_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := hubmocks.NewMemoryDirectoryCache()
	service := NewDirectoryService(DirectoryServiceOptions{
		Memberships: hubmocks.NewMemoryMembershipStore(),
		Cache:       cache,
	})

	require.NoError(t, cache.Set(ctx, "u1", []member.Membership{{TenantID: "t1", UserID: "u1"}}))
	require.NoError(t, service.Invalidate(ctx, "u1"))

	_, hit, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, cache.Invalidated, "u1")
}
