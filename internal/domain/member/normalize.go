package member

import "strings"

// Normalization is the single ingestion boundary for role/status tokens:
// every value read from storage, a request body, or an admin tool passes
// through here before it is compared anywhere else. The functions are
// pure; callers log when ok is false so unknown tokens stay visible to
// operators instead of silently collapsing.

// roleAliases maps legacy lowercase tokens from the old role scheme onto
// the canonical vocabulary. "supervisor" predates MODERATOR; "employee"
// has no canonical slot and collapses to MEMBER (least privilege).
var roleAliases = map[string]Role{
	"owner":      RoleOwner,
	"admin":      RoleAdmin,
	"supervisor": RoleModerator,
	"moderator":  RoleModerator,
	"employee":   RoleMember,
	"member":     RoleMember,
}

// NormalizeRole canonicalizes a raw role token. Canonical uppercase forms
// are fixed points. Unknown tokens fall back to MEMBER with ok=false so
// an unrecognized role can never grant more than least privilege.
func NormalizeRole(raw string) (Role, bool) {
	token := strings.TrimSpace(raw)
	switch Role(strings.ToUpper(token)) {
	case RoleOwner, RoleAdmin, RoleModerator, RoleMember:
		return Role(strings.ToUpper(token)), true
	}
	if r, ok := roleAliases[strings.ToLower(token)]; ok {
		return r, true
	}
	return RoleMember, false
}

// NormalizeStatus canonicalizes a raw status token. Unknown tokens fall
// back to PENDING with ok=false: an unknown status fails closed toward
// "needs approval" rather than granting access.
func NormalizeStatus(raw string) (Status, bool) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	switch Status(token) {
	case StatusPending, StatusActive, StatusSuspended, StatusBanned:
		return Status(token), true
	}
	return StatusPending, false
}

// NormalizeRoles canonicalizes a set of role tokens, expanding legacy
// aliases and dropping duplicates. Order of first appearance is kept.
func NormalizeRoles(raw []string) []Role {
	out := make([]Role, 0, len(raw))
	seen := make(map[Role]bool, len(raw))
	for _, token := range raw {
		r, _ := NormalizeRole(token)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
