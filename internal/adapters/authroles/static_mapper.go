package authroles

import (
	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
)

// StaticMapper maps IdP groups to a platform role by simple string
// membership. Only members of the configured operator group become
// SUPER_ADMIN; everyone else is a plain USER. Tenant roles come from
// memberships, never from IdP groups.
type StaticMapper struct {
	SuperAdminGroup string
}

func (m StaticMapper) Map(groups []string) domainauth.PlatformRole {
	for _, g := range groups {
		if m.SuperAdminGroup != "" && g == m.SuperAdminGroup {
			return domainauth.PlatformRoleSuperAdmin
		}
	}
	return domainauth.PlatformRoleUser
}
