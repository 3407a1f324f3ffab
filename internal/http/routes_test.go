package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/domain/member"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
	authmocks "github.com/gatherhq/hub-api/internal/mocks/auth"
	hubmocks "github.com/gatherhq/hub-api/internal/mocks/hub"
	"github.com/gatherhq/hub-api/internal/service"
)

// testHarness wires a full router against in-memory stores.
type testHarness struct {
	router      http.Handler
	sessions    *authmocks.MemorySessionStore
	tenants     *hubmocks.MemoryTenantStore
	memberships *hubmocks.MemoryMembershipStore
	overlays    *hubmocks.MemoryImpersonationStore
	cache       *hubmocks.MemoryDirectoryCache
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	sessions := authmocks.NewMemorySessionStore()
	tenants := hubmocks.NewMemoryTenantStore()
	memberships := hubmocks.NewMemoryMembershipStore()
	overlays := hubmocks.NewMemoryImpersonationStore()
	cache := hubmocks.NewMemoryDirectoryCache()

	directory := service.NewDirectoryService(service.DirectoryServiceOptions{
		Memberships: memberships,
		Cache:       cache,
	})
	auth := service.NewAuthService(service.AuthServiceOptions{
		Provider:       authmocks.NewMockAuthProvider(),
		Sessions:       sessions,
		Roles:          authmocks.StaticPlatformRoleMapper{SuperAdminGroup: "platform-admins"},
		Directory:      directory,
		Impersonations: overlays,
	})
	impersonations := service.NewImpersonationService(service.ImpersonationServiceOptions{
		Memberships: memberships,
		Overlays:    overlays,
		Directory:   directory,
	})
	membershipSvc := service.NewMembershipService(service.MembershipServiceOptions{
		Tenants:     tenants,
		Memberships: memberships,
		Directory:   directory,
	})
	resolvers := &service.ResolverFactory{
		Tenants:        tenants,
		Memberships:    memberships,
		Impersonations: overlays,
	}

	router := NewRouter(RouterServices{
		Auth:           auth,
		Directory:      directory,
		Memberships:    membershipSvc,
		Impersonations: impersonations,
		Resolvers:      resolvers,
	})

	return &testHarness{
		router:      router,
		sessions:    sessions,
		tenants:     tenants,
		memberships: memberships,
		overlays:    overlays,
		cache:       cache,
	}
}

func (h *testHarness) addTenant(id, slug string) {
	h.tenants.Put(tenant.Tenant{
		ID:     id,
		Slug:   slug,
		Name:   slug,
		Status: tenant.StatusActive,
		Settings: tenant.Settings{
			PublicSignup:     true,
			ApprovalRequired: true,
		},
		License: tenant.License{Status: tenant.LicenseActive},
	})
}

func (h *testHarness) signIn(t *testing.T, userID string, role domainauth.PlatformRole) *http.Cookie {
	t.Helper()
	sess := domainauth.Session{
		ID:           "sess-" + userID,
		UserID:       userID,
		Email:        userID + "@example.com",
		PlatformRole: role,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, h.sessions.Save(context.Background(), sess))
	return &http.Cookie{Name: "session_id", Value: sess.ID}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_AnonymousAPIRedirectedToJoin(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.Header.Set("Accept", "application/json")
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/c/acme/join", body["redirect_to"])
}

func TestGuard_AnonymousBrowserRedirectedToJoin(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.Header.Set("Accept", "text/html")
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/c/acme/join", rec.Header().Get("Location"))
}

func TestGuard_AnonymousAdminAreaGoesToLogin(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	req := httptest.NewRequest(http.MethodGet, "/c/acme/admin", nil)
	req.Header.Set("Accept", "text/html")
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/auth/login?redirect_uri="))
}

func TestGuard_ActiveMemberGranted(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusActive,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "section", body["page"])
	assert.NotNil(t, body["membership"])
}

func TestGuard_PendingMemberFunneledToPendingPage(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusPending,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/c/acme/pending", rec.Header().Get("Location"))
}

func TestGuard_PendingMemberAllowedOnPendingPage(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusPending,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/pending", nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_MemberDeniedAdminArea(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusActive,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/admin", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/c/acme/app", rec.Header().Get("Location"))
}

func TestGuard_OperatorGrantedEverywhere(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	cookie := h.signIn(t, "op", domainauth.PlatformRoleSuperAdmin)

	for _, path := range []string{"/c/acme/admin", "/c/acme/events", "/c/acme/app"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(cookie)
		rec := h.do(req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestGuard_SuspendedMemberNeverGranted(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusSuspended,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/c/acme/app", rec.Header().Get("Location"))
}

func TestGuard_ResolutionFailureDefersForAPI(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.tenants.GetErr = assert.AnError
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/c/acme/events", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGuard_JoinPageIsPublic(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	req := httptest.NewRequest(http.MethodGet, "/c/acme/join", nil)
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_JoinFlow(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/c/acme/join", nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	membership, ok := body["membership"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MEMBER", membership["role"])
	assert.Equal(t, "PENDING", membership["status"])
}

func TestAPI_JoinRequiresAuth(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/c/acme/join", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ListCommunities(t *testing.T) {
	h := newTestHarness(t)
	h.memberships.Upsert(context.Background(), member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleAdmin, Status: member.StatusActive,
	})
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodGet, "/api/communities", nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	memberships, ok := body["memberships"].([]any)
	require.True(t, ok)
	assert.Len(t, memberships, 1)
}

func TestAPI_GetCommunity(t *testing.T) {
	h := newTestHarness(t)
	h.addTenant("t1", "acme")

	req := httptest.NewRequest(http.MethodGet, "/api/c/acme", nil)
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	community, ok := body["community"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", community["slug"])
}

func TestAPI_GetCommunity_UnknownSlug(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/c/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateMember_AdminOnly(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(ctx, member.Membership{
		TenantID: "t1", UserID: "admin", Role: member.RoleAdmin, Status: member.StatusActive,
	})
	h.memberships.Upsert(ctx, member.Membership{
		TenantID: "t1", UserID: "u1", Role: member.RoleMember, Status: member.StatusPending,
	})

	// A plain member cannot reach the members area at all.
	memberCookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)
	req := httptest.NewRequest(http.MethodPut, "/api/c/acme/members/u1",
		strings.NewReader(`{"role":"member","status":"active"}`))
	req.Header.Set("Accept", "application/json")
	req.AddCookie(memberCookie)
	rec := h.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An admin approves the pending member.
	adminCookie := h.signIn(t, "admin", domainauth.PlatformRoleUser)
	req = httptest.NewRequest(http.MethodPut, "/api/c/acme/members/u1",
		strings.NewReader(`{"role":"member","status":"active"}`))
	req.Header.Set("Accept", "application/json")
	req.AddCookie(adminCookie)
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := h.memberships.Get(ctx, "t1", "u1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, member.StatusActive, updated.Status)
}

func TestAPI_Impersonation(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	h.addTenant("t1", "acme")
	h.memberships.Upsert(ctx, member.Membership{
		TenantID: "t1", UserID: "target", Role: member.RoleMember, Status: member.StatusActive,
	})
	opCookie := h.signIn(t, "op", domainauth.PlatformRoleSuperAdmin)

	// Non-operators cannot start impersonation.
	userCookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)
	req := httptest.NewRequest(http.MethodPost, "/api/impersonation",
		strings.NewReader(`{"target_user_id":"target"}`))
	req.AddCookie(userCookie)
	rec := h.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Operator starts impersonation of the target.
	req = httptest.NewRequest(http.MethodPost, "/api/impersonation",
		strings.NewReader(`{"target_user_id":"target","tenant_id":"t1"}`))
	req.AddCookie(opCookie)
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	// While impersonating, the operator sees the target's membership.
	req = httptest.NewRequest(http.MethodGet, "/api/c/acme", nil)
	req.AddCookie(opCookie)
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "target", body["acting_as"])
	membership, ok := body["membership"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MEMBER", membership["role"])

	// Stop returns the operator to their own identity.
	req = httptest.NewRequest(http.MethodDelete, "/api/impersonation", nil)
	req.AddCookie(opCookie)
	rec = h.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	overlay, err := h.overlays.Get(ctx, "sess-op")
	require.NoError(t, err)
	assert.Nil(t, overlay)
}

func TestAuthRoutes_LoginSetsStateCookiesAndRedirects(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/c/acme/app", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	names := make(map[string]string)
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	assert.Contains(t, names, "oauth_state")
	assert.Contains(t, names, "oauth_nonce")
	assert.Equal(t, "/c/acme/app", names["post_login_redirect"])
}

func TestAuthRoutes_CallbackRejectsStateMismatch(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRoutes_CallbackCompletesLogin(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: "post_login_redirect", Value: "/c/acme/app"})
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/c/acme/app", rec.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "login must set a session cookie")
}

func TestAuthRoutes_StatusReflectsImpersonation(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	h.memberships.Upsert(ctx, member.Membership{
		TenantID: "t1", UserID: "target", Role: member.RoleMember, Status: member.StatusActive,
	})
	opCookie := h.signIn(t, "op", domainauth.PlatformRoleSuperAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/impersonation",
		strings.NewReader(`{"target_user_id":"target"}`))
	req.AddCookie(opCookie)
	require.Equal(t, http.StatusOK, h.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(opCookie)
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "target", body["acting_as"])
}

func TestAuthRoutes_LogoutClearsSession(t *testing.T) {
	h := newTestHarness(t)
	cookie := h.signIn(t, "u1", domainauth.PlatformRoleUser)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/auth/login"))

	_, err := h.sessions.Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, authmocks.ErrNotFound)
}
