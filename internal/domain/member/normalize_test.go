package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole_CanonicalFixedPoints(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleModerator, RoleMember} {
		got, ok := NormalizeRole(string(r))
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
}

func TestNormalizeRole_LegacyAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"owner", RoleOwner},
		{"admin", RoleAdmin},
		{"supervisor", RoleModerator},
		{"moderator", RoleModerator},
		{"employee", RoleMember},
		{"member", RoleMember},
		{"  Supervisor ", RoleModerator},
	}
	for _, tc := range tests {
		got, ok := NormalizeRole(tc.raw)
		assert.True(t, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
	}
}

func TestNormalizeRole_UnknownFallsBackToMember(t *testing.T) {
	for _, raw := range []string{"", "root", "superuser", "ADMINISTRATOR", "42"} {
		got, ok := NormalizeRole(raw)
		assert.False(t, ok, "raw=%q", raw)
		assert.Equal(t, RoleMember, got, "raw=%q", raw)
	}
}

func TestNormalizeRole_Idempotent(t *testing.T) {
	inputs := []string{"owner", "ADMIN", "supervisor", "employee", "garbage", ""}
	for _, raw := range inputs {
		once, _ := NormalizeRole(raw)
		twice, ok := NormalizeRole(string(once))
		assert.True(t, ok, "canonical forms must be fixed points (raw=%q)", raw)
		assert.Equal(t, once, twice, "raw=%q", raw)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw    string
		want   Status
		wantOK bool
	}{
		{"ACTIVE", StatusActive, true},
		{"active", StatusActive, true},
		{"Pending", StatusPending, true},
		{"SUSPENDED", StatusSuspended, true},
		{"banned", StatusBanned, true},
		{"", StatusPending, false},
		{"frozen", StatusPending, false},
	}
	for _, tc := range tests {
		got, ok := NormalizeStatus(tc.raw)
		assert.Equal(t, tc.wantOK, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
	}
}

func TestNormalizeRoles_ExpandsAndDedupes(t *testing.T) {
	got := NormalizeRoles([]string{"supervisor", "MODERATOR", "member", "employee", "owner"})
	assert.Equal(t, []Role{RoleModerator, RoleMember, RoleOwner}, got)
}

func TestRoleRank_Monotonic(t *testing.T) {
	assert.Less(t, RoleMember.Rank(), RoleModerator.Rank())
	assert.Less(t, RoleModerator.Rank(), RoleAdmin.Rank())
	assert.Less(t, RoleAdmin.Rank(), RoleOwner.Rank())
	assert.Less(t, Role("bogus").Rank(), RoleMember.Rank())
}

func TestRoleAdminCapable(t *testing.T) {
	assert.True(t, RoleOwner.AdminCapable())
	assert.True(t, RoleAdmin.AdminCapable())
	assert.True(t, RoleModerator.AdminCapable())
	assert.False(t, RoleMember.AdminCapable())
	assert.False(t, Role("bogus").AdminCapable())
}
