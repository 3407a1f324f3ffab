package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/gatherhq/hub-api/internal/errors"
	"github.com/gatherhq/hub-api/internal/service"
)

// HubHandlers provides HTTP handlers for community membership operations.
type HubHandlers struct {
	Directory      *service.DirectoryService
	Memberships    *service.MembershipService
	Impersonations *service.ImpersonationService
	Resolvers      *service.ResolverFactory
	Logger         *slog.Logger
}

// ListCommunities returns the caller's membership directory.
// GET /api/communities.
func (h *HubHandlers) ListCommunities(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	memberships, err := h.Directory.ListMemberships(r.Context(), session.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"memberships": memberships,
	})
}

// GetCommunity resolves the caller within a community and returns the
// tenant summary plus their effective membership, if any.
// GET /api/c/{slug}.
func (h *HubHandlers) GetCommunity(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	session := GetSessionFromContext(r.Context())

	resolver := h.Resolvers.New()
	res, err := resolver.Resolve(r.Context(), slug, session)
	if err != nil {
		writeAppError(w, err)
		return
	}

	payload := map[string]any{
		"community": map[string]any{
			"id":       res.Tenant.ID,
			"slug":     res.Tenant.Slug,
			"name":     res.Tenant.Name,
			"settings": res.Tenant.Settings,
		},
	}
	if res.Membership != nil {
		payload["membership"] = res.Membership
	}
	if res.ActingAs != "" {
		payload["acting_as"] = res.ActingAs
	}
	WriteJSON(w, http.StatusOK, payload)
}

// Join registers the caller as a member of the community.
// POST /api/c/{slug}/join.
func (h *HubHandlers) Join(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("sign in to join a community"),
		})
		return
	}

	m, err := h.Memberships.Join(r.Context(), slug, session.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"membership": m,
	})
}

// GetMember returns one member's membership in the community.
// GET /api/c/{slug}/members/{userID}.
// The access middleware has already established the caller's admin
// capability and attached the resolution.
func (h *HubHandlers) GetMember(w http.ResponseWriter, r *http.Request) {
	res, ok := GetResolutionFromContext(r.Context())
	if !ok || res.Tenant == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "resolution_missing",
			Err:     errors.New("membership resolution missing from request"),
		})
		return
	}

	m, err := h.Memberships.GetMember(r.Context(), res.Tenant.ID, r.PathValue("userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if m == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "member_not_found",
			Err:     errors.New("no such member"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"membership": m})
}

// updateMemberRequest is the body for member role/status updates.
type updateMemberRequest struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

// UpdateMember changes a member's role and status.
// PUT /api/c/{slug}/members/{userID}.
func (h *HubHandlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	res, ok := GetResolutionFromContext(r.Context())
	if !ok || res.Tenant == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "resolution_missing",
			Err:     errors.New("membership resolution missing from request"),
		})
		return
	}
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req updateMemberRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	updated, err := h.Memberships.SetRoleStatus(r.Context(), service.SetRoleStatusInput{
		Actor:        *session,
		TenantID:     res.Tenant.ID,
		TargetUserID: r.PathValue("userID"),
		Role:         req.Role,
		Status:       req.Status,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"membership": updated})
}

// RemoveMember deletes a member's membership.
// DELETE /api/c/{slug}/members/{userID}.
func (h *HubHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	res, ok := GetResolutionFromContext(r.Context())
	if !ok || res.Tenant == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "resolution_missing",
			Err:     errors.New("membership resolution missing from request"),
		})
		return
	}

	if err := h.Memberships.Leave(r.Context(), res.Tenant.ID, r.PathValue("userID")); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// startImpersonationRequest is the body for starting impersonation.
type startImpersonationRequest struct {
	TargetUserID string `json:"target_user_id"`
	TenantID     string `json:"tenant_id,omitempty"`
}

// StartImpersonation activates an impersonation overlay for the
// operator's session.
// POST /api/impersonation.
func (h *HubHandlers) StartImpersonation(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req startImpersonationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Impersonations.Start(r.Context(), service.StartInput{
		Actor:        *session,
		TargetUserID: req.TargetUserID,
		TenantID:     req.TenantID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "impersonating",
		"acting_as": req.TargetUserID,
	})
}

// StopImpersonation deactivates the operator's impersonation overlay.
// DELETE /api/impersonation.
func (h *HubHandlers) StopImpersonation(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	if err := h.Impersonations.Stop(r.Context(), *session); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeAppError maps application error codes onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case apperrors.ErrCodeValidation:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	case apperrors.ErrCodeConflict:
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err})
	case apperrors.ErrCodeUnauthorized:
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: err})
	case apperrors.ErrCodeForbidden:
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "access_denied", Err: err})
	case apperrors.ErrCodeTimeout:
		WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "timeout", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
	}
}
