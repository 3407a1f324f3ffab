package data

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gatherhq/hub-api/internal/domain/member"
)

func TestMembershipRowToDomain(t *testing.T) {
	logger := slog.Default()
	now := time.Now()

	tests := []struct {
		name       string
		rawRole    string
		rawStatus  string
		wantRole   member.Role
		wantStatus member.Status
	}{
		{"canonical passthrough", "ADMIN", "ACTIVE", member.RoleAdmin, member.StatusActive},
		{"legacy supervisor alias", "supervisor", "active", member.RoleModerator, member.StatusActive},
		{"legacy employee alias", "Employee", "Pending", member.RoleMember, member.StatusPending},
		{"unknown role falls back", "wizard", "ACTIVE", member.RoleMember, member.StatusActive},
		{"unknown status falls back", "OWNER", "frozen", member.RoleOwner, member.StatusPending},
		{"empty tokens fall back", "", "", member.RoleMember, member.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := membershipRow{
				TenantID:  "tenant-1",
				UserID:    "user-1",
				Role:      tt.rawRole,
				Status:    tt.rawStatus,
				CreatedAt: now,
				UpdatedAt: now,
			}
			m := row.toDomain(context.Background(), logger)
			assert.Equal(t, tt.wantRole, m.Role)
			assert.Equal(t, tt.wantStatus, m.Status)
			assert.Equal(t, "tenant-1", m.TenantID)
			assert.Equal(t, "user-1", m.UserID)
		})
	}
}

func TestMembershipRowToDomainNilLogger(t *testing.T) {
	row := membershipRow{TenantID: "t", UserID: "u", Role: "bogus", Status: "bogus"}
	m := row.toDomain(context.Background(), nil)
	assert.Equal(t, member.RoleMember, m.Role)
	assert.Equal(t, member.StatusPending, m.Status)
}
