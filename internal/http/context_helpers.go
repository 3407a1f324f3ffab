package httpx

import (
	"context"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/service"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// resolutionKey carries the committed membership resolution for guarded routes.
type resolutionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context.
// Maintained for convenience; prefer GetUserSessionFromContext when you need presence info.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}

// SetResolutionInContext attaches the membership resolution computed by
// the access middleware so handlers don't resolve twice.
func SetResolutionInContext(ctx context.Context, res service.Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey{}, res)
}

// GetResolutionFromContext returns the committed resolution for the
// request, if the route went through the access middleware.
func GetResolutionFromContext(ctx context.Context) (service.Resolution, bool) {
	if res, ok := ctx.Value(resolutionKey{}).(service.Resolution); ok {
		return res, true
	}
	return service.Resolution{}, false
}
