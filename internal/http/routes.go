package httpx

import (
	"log/slog"
	"net/http"

	"github.com/gatherhq/hub-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth           *service.AuthService
	Directory      *service.DirectoryService
	Memberships    *service.MembershipService
	Impersonations *service.ImpersonationService
	Resolvers      *service.ResolverFactory
	CookieDomain   string
	IsDev          bool
	Logger         *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:            services.Auth,
		Impersonations: services.Impersonations,
		CookieDomain:   services.CookieDomain,
		Logger:         services.Logger,
	}
	hubHandlers := &HubHandlers{
		Directory:      services.Directory,
		Memberships:    services.Memberships,
		Impersonations: services.Impersonations,
		Resolvers:      services.Resolvers,
		Logger:         services.Logger,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	registerAuthRoutes(mux, authHandlers)
	registerHubRoutes(mux, hubHandlers, services)
	registerPageRoutes(mux, services)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Recover(logger)(Logging(logger)(mux))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerHubRoutes(mux *http.ServeMux, h *HubHandlers, services RouterServices) {
	guard := GuardAccess(AccessConfig{
		Auth:      services.Auth,
		Resolvers: services.Resolvers,
		Logger:    services.Logger,
	})

	mux.Handle("GET /api/communities", RequireAuth(services.Auth)(http.HandlerFunc(h.ListCommunities)))

	// Community routes share one access decision per path shape; the
	// guard resolves membership once and hands the resolution down.
	mux.Handle("GET /api/c/{slug}", guard(http.HandlerFunc(h.GetCommunity)))
	mux.Handle("POST /api/c/{slug}/join", guard(http.HandlerFunc(h.Join)))
	mux.Handle("GET /api/c/{slug}/members/{userID}", guard(http.HandlerFunc(h.GetMember)))
	mux.Handle("PUT /api/c/{slug}/members/{userID}", guard(http.HandlerFunc(h.UpdateMember)))
	mux.Handle("DELETE /api/c/{slug}/members/{userID}", guard(http.HandlerFunc(h.RemoveMember)))

	operatorOnly := RequireOperator(services.Auth)
	mux.Handle("POST /api/impersonation", operatorOnly(http.HandlerFunc(h.StartImpersonation)))
	mux.Handle("DELETE /api/impersonation", operatorOnly(http.HandlerFunc(h.StopImpersonation)))
}

// registerPageRoutes wires the page-shaped routes that access decisions
// redirect to. The service is API-first; pages answer with a small JSON
// document describing where the client is, which front ends render.
func registerPageRoutes(mux *http.ServeMux, services RouterServices) {
	guard := GuardAccess(AccessConfig{
		Auth:      services.Auth,
		Resolvers: services.Resolvers,
		Logger:    services.Logger,
	})

	mux.Handle("GET /login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"page":      "login",
			"login_url": "/auth/login",
		})
	}))

	mux.Handle("GET /communities", OptionalAuth(services.Auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"page": "communities"})
	})))

	mux.Handle("GET /c/{slug}", guard(pagePayload("community")))
	mux.Handle("GET /c/{slug}/{section}", guard(pagePayload("section")))
	mux.Handle("GET /c/{slug}/{section}/{rest...}", guard(pagePayload("section")))
}

// pagePayload returns a handler that reports the page plus the caller's
// committed resolution when the route was guarded.
func pagePayload(page string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"page": page,
			"slug": r.PathValue("slug"),
		}
		if section := r.PathValue("section"); section != "" {
			payload["section"] = section
		}
		if res, ok := GetResolutionFromContext(r.Context()); ok {
			if res.Membership != nil {
				payload["membership"] = res.Membership
			}
			if res.ActingAs != "" {
				payload["acting_as"] = res.ActingAs
			}
		}
		WriteJSON(w, http.StatusOK, payload)
	})
}
