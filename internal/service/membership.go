package service

import (
	"context"
	"fmt"
	"log/slog"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/domain/member"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
	"github.com/gatherhq/hub-api/internal/observability/audit"
	"github.com/gatherhq/hub-api/internal/ports"
)

// MembershipServiceOptions groups dependencies for MembershipService.
type MembershipServiceOptions struct {
	Tenants     ports.TenantStore
	Memberships ports.MembershipStore
	Directory   *DirectoryService
	Audit       audit.Sink
	Logger      *slog.Logger
}

// MembershipService handles joining communities and administering
// member roles and statuses. Every mutation invalidates the affected
// user's directory cache before returning.
type MembershipService struct {
	tenants     ports.TenantStore
	memberships ports.MembershipStore
	directory   *DirectoryService
	auditSink   audit.Sink
	logger      *slog.Logger
}

// NewMembershipService constructs a new MembershipService.
func NewMembershipService(opts MembershipServiceOptions) *MembershipService {
	return &MembershipService{
		tenants:     opts.Tenants,
		memberships: opts.Memberships,
		directory:   opts.Directory,
		auditSink:   opts.Audit,
		logger:      opts.Logger,
	}
}

// Join registers the user as a member of the community named by slug.
// Registration requires public signup and a license in good standing.
// New members start pending when the community requires approval,
// active otherwise. Joining a community you already belong to returns
// the existing membership unchanged.
func (s *MembershipService) Join(ctx context.Context, slug, userID string) (*member.Membership, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("sign in to join a community")
	}

	t, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !t.AcceptsRegistration() {
		return nil, apperrors.Forbidden("community is not accepting registrations")
	}

	existing, err := s.memberships.Get(ctx, t.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("check existing membership: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	status := member.StatusActive
	if t.Settings.ApprovalRequired {
		status = member.StatusPending
	}

	created, err := s.memberships.Upsert(ctx, member.Membership{
		TenantID: t.ID,
		UserID:   userID,
		Role:     member.RoleMember,
		Status:   status,
	})
	if err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.invalidate(ctx, userID)
	return created, nil
}

// SetRoleStatusInput groups parameters for an admin role/status change.
type SetRoleStatusInput struct {
	Actor        domainauth.Session
	TenantID     string
	TargetUserID string
	// Role and Status are raw tokens; legacy aliases are accepted and
	// canonicalized here.
	Role   string
	Status string
}

// SetRoleStatus changes a member's role and status. Unknown tokens fall
// back to the safe defaults with a warning rather than failing the
// request.
func (s *MembershipService) SetRoleStatus(ctx context.Context, in SetRoleStatusInput) (*member.Membership, error) {
	if in.TenantID == "" || in.TargetUserID == "" {
		return nil, apperrors.Validation("tenant ID and target user ID are required")
	}

	role, roleOK := member.NormalizeRole(in.Role)
	status, statusOK := member.NormalizeStatus(in.Status)
	if s.logger != nil {
		if !roleOK {
			s.logger.WarnContext(ctx, "unknown role token in admin update", "raw_role", in.Role)
		}
		if !statusOK {
			s.logger.WarnContext(ctx, "unknown status token in admin update", "raw_status", in.Status)
		}
	}

	updated, err := s.memberships.UpdateRoleStatus(ctx, member.Membership{
		TenantID: in.TenantID,
		UserID:   in.TargetUserID,
		Role:     role,
		Status:   status,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, in.TargetUserID)

	audit.Emit(ctx, s.auditSink, s.logger, audit.Event{
		Action:       audit.ActionMembershipChanged,
		TenantID:     in.TenantID,
		ActorUserID:  in.Actor.UserID,
		TargetUserID: in.TargetUserID,
	})
	return updated, nil
}

// Leave removes the user's membership. Leaving a community you are not
// a member of is a no-op.
func (s *MembershipService) Leave(ctx context.Context, tenantID, userID string) error {
	if tenantID == "" || userID == "" {
		return nil
	}
	if err := s.memberships.Delete(ctx, tenantID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetMember returns one member's membership, or (nil, nil) when absent.
func (s *MembershipService) GetMember(ctx context.Context, tenantID, userID string) (*member.Membership, error) {
	return s.memberships.Get(ctx, tenantID, userID)
}

func (s *MembershipService) invalidate(ctx context.Context, userID string) {
	if s.directory == nil {
		return
	}
	if err := s.directory.Invalidate(ctx, userID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "directory invalidation failed", "user_id", userID, "error", err)
	}
}
