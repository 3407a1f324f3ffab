package access

// Package access contains the route authorization guard: a pure decision
// function mapping {platform role, membership, route requirement} to a
// grant/redirect/defer outcome. It performs no I/O and never errors;
// callers supply fresh, already-resolved and already-normalized inputs.

import (
	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/domain/member"
)

// Outcome is the kind of decision the guard produced.
type Outcome string

const (
	OutcomeGrant    Outcome = "GRANT"
	OutcomeRedirect Outcome = "REDIRECT"
	// OutcomeDefer means the decision is not yet computable (identity or
	// tenant data still loading); the caller shows a loading state and
	// re-invokes once inputs settle. Defer is never a deny.
	OutcomeDefer Outcome = "DEFER"
)

// Decision is the guard's verdict. Target is set only for redirects.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
}

// Grant returns an allow decision.
func Grant() Decision { return Decision{Outcome: OutcomeGrant} }

// Defer returns a not-yet-decidable decision.
func Defer() Decision { return Decision{Outcome: OutcomeDefer} }

// RedirectTo returns a redirect decision to the given in-app target.
func RedirectTo(target string) Decision {
	return Decision{Outcome: OutcomeRedirect, Target: target}
}

// Input is the full tuple the guard evaluates. Membership must already
// be normalized; nil means "no membership" (anonymous visitors and
// authenticated non-members alike).
type Input struct {
	IdentityLoading bool
	TenantLoading   bool

	// PlatformRole is empty for anonymous requests.
	PlatformRole domainauth.PlatformRole

	Membership    *member.Membership
	RequiredRoles []member.Role
	AllowPending  bool

	TenantSlug  string
	CurrentPath string
}

// Authorize computes the navigation decision for one request. The rules
// are evaluated strictly in order; the first match wins. The ordering is
// a documented contract:
//
//  1. loading state defers; it neither denies nor grants
//  2. platform super-admins bypass every tenant-role check
//  3. no membership funnels to join (member content) or login
//  4. pending members are held on the pending page unless the route
//     tolerates pending
//  5. active (or tolerated-pending) members with a required role pass
//  6. everyone else is bounced to the closest valid home area rather
//     than shown an error
func Authorize(in Input) Decision {
	if in.IdentityLoading || in.TenantLoading {
		return Defer()
	}

	if in.PlatformRole == domainauth.PlatformRoleSuperAdmin {
		return Grant()
	}

	if in.Membership == nil {
		if in.TenantSlug != "" && TargetsMemberArea(in.CurrentPath) {
			return RedirectTo(JoinPath(in.TenantSlug))
		}
		return RedirectTo(LoginPath())
	}

	role := in.Membership.Role
	status := in.Membership.Status
	roleInRequired := roleIn(role, in.RequiredRoles)

	// A pending member whose role would otherwise admit them is shown
	// the holding page, not an error.
	if status == member.StatusPending && !in.AllowPending && roleInRequired {
		return redirectOrLogin(in.TenantSlug, PendingPath)
	}

	statusAdmits := status == member.StatusActive ||
		(status == member.StatusPending && in.AllowPending)
	if roleInRequired && statusAdmits {
		return Grant()
	}

	// Best-effort fallback: bounce to some valid destination instead of
	// surfacing a 403.
	if in.TenantSlug == "" {
		return RedirectTo(LoginPath())
	}
	switch {
	case status == member.StatusPending:
		return RedirectTo(PendingPath(in.TenantSlug))
	case role.AdminCapable():
		return RedirectTo(AdminHomePath(in.TenantSlug))
	default:
		return RedirectTo(MemberHomePath(in.TenantSlug))
	}
}

func roleIn(role member.Role, required []member.Role) bool {
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

func redirectOrLogin(slug string, build func(string) string) Decision {
	if slug == "" {
		return RedirectTo(LoginPath())
	}
	return RedirectTo(build(slug))
}
