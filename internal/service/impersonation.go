package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
	"github.com/gatherhq/hub-api/internal/observability/audit"
	"github.com/gatherhq/hub-api/internal/ports"
)

// ErrImpersonationTargetInvalid is returned when the impersonation
// target has no membership to impersonate.
var ErrImpersonationTargetInvalid error = apperrors.Validation("impersonation target has no membership")

// ImpersonationServiceOptions groups dependencies for ImpersonationService.
type ImpersonationServiceOptions struct {
	Memberships ports.MembershipStore
	Overlays    ports.ImpersonationStore
	Directory   *DirectoryService
	Audit       audit.Sink
	Logger      *slog.Logger
}

// ImpersonationService lets platform operators act as a specific member.
// The overlay only ever narrows privilege: while it is active the
// operator's platform role reads as plain user and only the target's
// stored membership applies.
type ImpersonationService struct {
	memberships ports.MembershipStore
	overlays    ports.ImpersonationStore
	directory   *DirectoryService
	auditSink   audit.Sink
	logger      *slog.Logger
}

// NewImpersonationService constructs a new ImpersonationService.
func NewImpersonationService(opts ImpersonationServiceOptions) *ImpersonationService {
	return &ImpersonationService{
		memberships: opts.Memberships,
		overlays:    opts.Overlays,
		directory:   opts.Directory,
		auditSink:   opts.Audit,
		logger:      opts.Logger,
	}
}

// StartInput groups parameters for starting impersonation.
type StartInput struct {
	// Actor is the operator's session.
	Actor domainauth.Session
	// TargetUserID is the member to act as.
	TargetUserID string
	// TenantID scopes the overlay to one community; empty applies it
	// everywhere the target has a membership.
	TenantID string
}

// Start activates an impersonation overlay for the actor's session.
// Only platform operators may impersonate, and the target must hold at
// least one membership (in the given tenant when one is named).
func (s *ImpersonationService) Start(ctx context.Context, in StartInput) error {
	if !in.Actor.IsSuperAdmin() {
		return apperrors.Forbidden("impersonation requires platform operator privilege")
	}
	if in.TargetUserID == "" {
		return apperrors.Validation("target user ID is required")
	}
	if in.TargetUserID == in.Actor.UserID {
		return apperrors.Validation("cannot impersonate yourself")
	}

	if err := s.validateTarget(ctx, in.TargetUserID, in.TenantID); err != nil {
		return err
	}

	state := ports.ImpersonationState{
		AsUserID:  in.TargetUserID,
		TenantID:  in.TenantID,
		StartedAt: time.Now().UTC(),
	}
	if err := s.overlays.Set(ctx, in.Actor.ID, state); err != nil {
		return fmt.Errorf("persist impersonation overlay: %w", err)
	}

	s.invalidateBoth(ctx, in.Actor.UserID, in.TargetUserID)

	audit.Emit(ctx, s.auditSink, s.logger, audit.Event{
		Action:       audit.ActionImpersonationStarted,
		TenantID:     in.TenantID,
		ActorUserID:  in.Actor.UserID,
		TargetUserID: in.TargetUserID,
	})
	return nil
}

// Stop deactivates the actor's impersonation overlay. Stopping when no
// overlay is active is a no-op.
func (s *ImpersonationService) Stop(ctx context.Context, actor domainauth.Session) error {
	overlay, err := s.overlays.Get(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("read impersonation overlay: %w", err)
	}
	if overlay == nil {
		return nil
	}

	if deleteErr := s.overlays.Delete(ctx, actor.ID); deleteErr != nil {
		return fmt.Errorf("delete impersonation overlay: %w", deleteErr)
	}

	s.invalidateBoth(ctx, actor.UserID, overlay.AsUserID)

	audit.Emit(ctx, s.auditSink, s.logger, audit.Event{
		Action:       audit.ActionImpersonationStopped,
		TenantID:     overlay.TenantID,
		ActorUserID:  actor.UserID,
		TargetUserID: overlay.AsUserID,
	})
	return nil
}

// Current returns the actor's active overlay, or nil when none is set.
func (s *ImpersonationService) Current(ctx context.Context, sessionID string) (*ports.ImpersonationState, error) {
	if sessionID == "" {
		return nil, nil
	}
	overlay, err := s.overlays.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read impersonation overlay: %w", err)
	}
	return overlay, nil
}

func (s *ImpersonationService) validateTarget(ctx context.Context, targetUserID, tenantID string) error {
	if tenantID != "" {
		m, err := s.memberships.Get(ctx, tenantID, targetUserID)
		if err != nil {
			return fmt.Errorf("validate impersonation target: %w", err)
		}
		if m == nil {
			return ErrImpersonationTargetInvalid
		}
		return nil
	}

	memberships, err := s.memberships.ListByUser(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("validate impersonation target: %w", err)
	}
	if len(memberships) == 0 {
		return ErrImpersonationTargetInvalid
	}
	return nil
}

// invalidateBoth drops the cached directories of actor and target so
// neither side keeps a pre-overlay view.
func (s *ImpersonationService) invalidateBoth(ctx context.Context, actorUserID, targetUserID string) {
	if s.directory == nil {
		return
	}
	for _, userID := range []string{actorUserID, targetUserID} {
		if err := s.directory.Invalidate(ctx, userID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "directory invalidation failed", "user_id", userID, "error", err)
		}
	}
}
