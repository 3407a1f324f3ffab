package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// PlatformRole is a global, cross-tenant privilege level. It is distinct
// from any tenant membership role: SUPER_ADMIN is a platform-operator
// override, not a tenant role.
// Keep string form for easy persistence and cookies.
type PlatformRole string

const (
	PlatformRoleUser       PlatformRole = "USER"
	PlatformRoleSuperAdmin PlatformRole = "SUPER_ADMIN"
)

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID      string // stable user identifier (e.g., sub)
	Email       string
	DisplayName string
	Groups      []string
	ExpiresAt   time.Time // absolute expiry from IdP token
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier (e.g., random URL-safe string).
type Session struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Email        string       `json:"email"`
	DisplayName  string       `json:"display_name"`
	PlatformRole PlatformRole `json:"platform_role"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// IsSuperAdmin reports whether the session belongs to a platform operator.
func (s Session) IsSuperAdmin() bool { return s.PlatformRole == PlatformRoleSuperAdmin }
