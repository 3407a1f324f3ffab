package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatherhq/hub-api/internal/domain/member"
)

func TestTargetsMemberArea(t *testing.T) {
	assert.True(t, TargetsMemberArea("/c/acme/app"))
	assert.True(t, TargetsMemberArea("/c/acme/app/settings"))
	assert.True(t, TargetsMemberArea("/c/acme/events"))
	assert.True(t, TargetsMemberArea("/c/acme/groups/42"))

	assert.False(t, TargetsMemberArea("/c/acme/admin"))
	assert.False(t, TargetsMemberArea("/c/acme/join"))
	assert.False(t, TargetsMemberArea("/c/acme"))
	assert.False(t, TargetsMemberArea("/communities"))
	assert.False(t, TargetsMemberArea("/"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "acme", Slug("/c/acme/app"))
	assert.Equal(t, "acme", Slug("/c/acme"))
	assert.Equal(t, "", Slug("/communities"))
	assert.Equal(t, "", Slug("/c/"))
}

func TestRequirementFor(t *testing.T) {
	// Public pages are unguarded.
	_, guarded := RequirementFor("/c/acme")
	assert.False(t, guarded)
	_, guarded = RequirementFor("/c/acme/join")
	assert.False(t, guarded)
	_, guarded = RequirementFor("/communities")
	assert.False(t, guarded)

	req, guarded := RequirementFor("/c/acme/pending")
	assert.True(t, guarded)
	assert.True(t, req.AllowPending)
	assert.Equal(t, allRoles, req.RequiredRoles)

	req, guarded = RequirementFor("/c/acme/admin/settings")
	assert.True(t, guarded)
	assert.False(t, req.AllowPending)
	assert.Equal(t, adminRoles, req.RequiredRoles)
	assert.NotContains(t, req.RequiredRoles, member.RoleMember)

	req, guarded = RequirementFor("/c/acme/events/9")
	assert.True(t, guarded)
	assert.Equal(t, allRoles, req.RequiredRoles)

	// Unknown tenant sub-paths fail closed toward membership-required.
	req, guarded = RequirementFor("/c/acme/mystery")
	assert.True(t, guarded)
	assert.Equal(t, allRoles, req.RequiredRoles)
	assert.False(t, req.AllowPending)
}
