package access

import (
	"strings"

	"github.com/gatherhq/hub-api/internal/domain/member"
)

// Route targets the guard may redirect to. All are in-app relative paths.

// LoginPath is the platform sign-in page.
func LoginPath() string { return "/login" }

// CommunitiesPath is the cross-tenant landing page listing the user's
// memberships; used as the post-login destination when no tenant context
// exists.
func CommunitiesPath() string { return "/communities" }

// JoinPath is a tenant's public registration page.
func JoinPath(slug string) string { return "/c/" + slug + "/join" }

// PendingPath is the holding page for members awaiting approval.
func PendingPath(slug string) string { return "/c/" + slug + "/pending" }

// AdminHomePath is the home area for admin-capable members.
func AdminHomePath(slug string) string { return "/c/" + slug + "/admin" }

// MemberHomePath is the home area for plain members.
func MemberHomePath(slug string) string { return "/c/" + slug + "/app" }

// memberSections are the leaf section names that make up the member app.
// A tenant may disable individual sections via settings, but for
// authorization purposes any of these paths is member content.
var memberSections = map[string]bool{
	"app":           true,
	"announcements": true,
	"events":        true,
	"groups":        true,
	"programs":      true,
	"resources":     true,
	"invitations":   true,
}

// TargetsMemberArea reports whether path points at member content under
// a tenant (as opposed to the admin area or a public page). Anonymous
// visitors hitting member content are funneled to the join page rather
// than the login page.
func TargetsMemberArea(path string) bool {
	_, rest, ok := splitTenantPath(path)
	if !ok {
		return false
	}
	section, _, _ := strings.Cut(rest, "/")
	return memberSections[section]
}

// Slug extracts the tenant slug from a /c/{slug}/... path, or "" when
// the path carries no tenant context.
func Slug(path string) string {
	slug, _, _ := splitTenantPath(path)
	return slug
}

// splitTenantPath splits "/c/{slug}/rest" into (slug, rest, true).
func splitTenantPath(path string) (slug, rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 2 || parts[0] != "c" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		rest = parts[2]
	}
	return parts[1], rest, true
}

// Requirement is the authorization configuration attached to a route:
// which canonical roles may enter, and whether a PENDING membership is
// tolerated (true only for the join/pending pages themselves).
type Requirement struct {
	RequiredRoles []member.Role
	AllowPending  bool
}

// allRoles admits every canonical role.
var allRoles = []member.Role{member.RoleOwner, member.RoleAdmin, member.RoleModerator, member.RoleMember}

// adminRoles admits admin-capable roles only.
var adminRoles = []member.Role{member.RoleOwner, member.RoleAdmin, member.RoleModerator}

// RequirementFor returns the declared requirement for a tenant-scoped
// path and whether the path is guarded at all. Paths without tenant
// context are not guarded here (the routing layer handles them).
func RequirementFor(path string) (Requirement, bool) {
	_, rest, ok := splitTenantPath(path)
	if !ok {
		return Requirement{}, false
	}
	section, _, _ := strings.Cut(rest, "/")
	switch {
	case section == "" || section == "join":
		// Public tenant page and registration are open to anonymous
		// visitors; the guard is not consulted.
		return Requirement{}, false
	case section == "pending":
		// The holding page itself must tolerate pending members.
		return Requirement{RequiredRoles: allRoles, AllowPending: true}, true
	case section == "admin" || section == "members":
		return Requirement{RequiredRoles: adminRoles}, true
	case memberSections[section]:
		return Requirement{RequiredRoles: allRoles}, true
	default:
		// Unknown tenant sub-path: treat as member content so new
		// sections fail closed toward membership-required.
		return Requirement{RequiredRoles: allRoles}, true
	}
}
