package member

// Package member contains domain-level types for tenant memberships:
// the canonical role/status vocabulary and the membership record itself.
// It is pure and free of storage/transport concerns.

import "time"

// Role is a tenant-scoped membership role. Canonical values are the
// uppercase constants below; legacy lowercase tokens from the old role
// scheme are mapped in by NormalizeRole.
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleMember    Role = "MEMBER"
)

// Status is a membership lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusBanned    Status = "BANNED"
)

// Membership is the (user, tenant) relationship granting a user standing
// within one tenant. Exactly one membership exists per (TenantID, UserID)
// pair; the uniqueness is enforced at the storage layer.
type Membership struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rank returns the privilege ordering of a role, strictly increasing
// MEMBER < MODERATOR < ADMIN < OWNER. Unknown roles rank below MEMBER so
// a malformed value can never win a highest-privilege comparison.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AdminCapable reports whether the role carries elevated privileges
// (OWNER, ADMIN, MODERATOR) as opposed to plain MEMBER.
func (r Role) AdminCapable() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleModerator:
		return true
	default:
		return false
	}
}

// IsActive reports whether the membership grants unrestricted access.
func (m Membership) IsActive() bool { return m.Status == StatusActive }
