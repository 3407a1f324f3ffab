package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gatherhq/hub-api/internal/domain/access"
	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth returns a middleware that attaches the session to the
// request context when one is present. Anonymous requests continue
// without session information.
func OptionalAuth(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, authSvc)
			if session != nil {
				ctx := SetSessionInContext(r.Context(), session)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns a middleware that requires authentication.
// If the user is not authenticated, it returns a 401 Unauthorized response.
func RequireAuth(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, authSvc)
			if session == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator returns a middleware that requires a platform
// operator session. Used for the impersonation endpoints.
func RequireOperator(authSvc AuthServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, authSvc)
			if session == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}
			if !session.IsSuperAdmin() {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("platform operator privilege required"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessConfig groups dependencies for the route access middleware.
type AccessConfig struct {
	Auth      AuthServiceInterface
	Resolvers *service.ResolverFactory
	Logger    *slog.Logger
}

// GuardAccess returns the route access middleware for community routes.
// It resolves the caller's membership in the community named by the
// path, evaluates the route's role requirement, and translates the
// decision: grants pass through with session and resolution in context,
// redirects become 302s for browsers and structured 401/403 payloads
// for API clients, and a not-yet-known resolution becomes a retryable
// 503 rather than a false denial.
func GuardAccess(cfg AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := routePath(r)
			requirement, guarded := access.RequirementFor(path)

			session := getSessionFromRequest(r, cfg.Auth)
			ctx := SetSessionInContext(r.Context(), session)

			if !guarded {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			slug := access.Slug(path)
			resolver := cfg.Resolvers.New()
			res, err := resolver.Resolve(ctx, slug, session)
			if err != nil && cfg.Logger != nil {
				cfg.Logger.WarnContext(ctx, "membership resolution failed",
					"path", path, "slug", slug, "error", err)
			}

			input := access.Input{
				TenantLoading: res.Loading,
				PlatformRole:  res.PlatformRole,
				Membership:    res.Membership,
				RequiredRoles: requirement.RequiredRoles,
				AllowPending:  requirement.AllowPending,
				TenantSlug:    slug,
				CurrentPath:   path,
			}
			decision := access.Authorize(input)

			switch decision.Outcome {
			case access.OutcomeGrant:
				ctx = SetResolutionInContext(ctx, res)
				next.ServeHTTP(w, r.WithContext(ctx))
			case access.OutcomeRedirect:
				writeRedirectDecision(w, r, session, decision.Target)
			case access.OutcomeDefer:
				writeDeferDecision(w, r, path)
			default:
				// Unreachable: the guard is total over its outcomes.
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})
	}
}

// routePath returns the request path used for access decisions.
// API routes under /api/c/{slug}/... share decisions with their page
// counterparts at /c/{slug}/....
func routePath(r *http.Request) string {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/c/") {
		return strings.TrimPrefix(path, "/api")
	}
	return path
}

func writeRedirectDecision(w http.ResponseWriter, r *http.Request, session *domainauth.Session, target string) {
	if isBrowserRequest(r) {
		if target == access.LoginPath() {
			target = loginURLFor(r)
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	code := http.StatusForbidden
	errCode := "access_denied"
	if session == nil {
		code = http.StatusUnauthorized
		errCode = "authentication_required"
	}
	WriteError(w, ErrorParams{Code: code, ErrCode: errCode, RedirectTo: target})
}

// writeDeferDecision answers "not known yet": API clients get a
// retryable 503, browsers are bounced back to the same path so the
// next load retries the resolution.
func writeDeferDecision(w http.ResponseWriter, r *http.Request, path string) {
	if isBrowserRequest(r) {
		http.Redirect(w, r, path, http.StatusFound)
		return
	}
	w.Header().Set("Retry-After", "1")
	WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "resolution_pending"})
}

// loginURLFor builds the login URL carrying the current path so the
// user lands back where they were after signing in.
func loginURLFor(r *http.Request) string {
	return "/auth/login?redirect_uri=" + url.QueryEscape(safeRedirectPath(r.URL.RequestURI()))
}

// getSessionFromRequest retrieves and validates a session from the request.
func getSessionFromRequest(r *http.Request, authSvc AuthServiceInterface) *domainauth.Session {
	sessionCookie, err := r.Cookie("session_id")
	if err != nil {
		return nil
	}

	session, err := authSvc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		return nil
	}

	return session
}

// isBrowserRequest determines if a request is from a browser based on
// the path prefix and the Accept header. API routes are explicitly not
// browser requests; everything else that accepts HTML is.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}
