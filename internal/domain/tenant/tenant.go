package tenant

// Package tenant contains domain-level types for tenants (isolated
// community instances), their settings, and the license snapshot the
// registration flow consults.

import "time"

// Status is a tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// LicenseStatus describes the tenant's license state. License gates
// registration flows only; it never participates in route authorization.
type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "ACTIVE"
	LicenseSuspended LicenseStatus = "SUSPENDED"
	LicenseExpired   LicenseStatus = "EXPIRED"
	LicenseClaimed   LicenseStatus = "CLAIMED"
)

// Settings are tenant-level configuration knobs consulted by the join
// flow and the section navigation.
type Settings struct {
	PublicSignup     bool     `json:"public_signup"`
	ApprovalRequired bool     `json:"approval_required"`
	EnabledSections  []string `json:"enabled_sections"`
}

// License is a read-only snapshot of the tenant's licensing state.
type License struct {
	Status    LicenseStatus `json:"status"`
	Plan      string        `json:"plan"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// Tenant is one organization/community instance within the platform.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Settings  Settings  `json:"settings"`
	License   License   `json:"license"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Removed reports whether the tenant should be treated as absent for
// resolution purposes.
func (t Tenant) Removed() bool { return t.Status != StatusActive }

// AcceptsRegistration reports whether the join flow may create new
// memberships for this tenant.
func (t Tenant) AcceptsRegistration() bool {
	if !t.Settings.PublicSignup {
		return false
	}
	switch t.License.Status {
	case LicenseActive, LicenseClaimed:
		return true
	default:
		return false
	}
}
