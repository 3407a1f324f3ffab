package bootstrap

import (
	"log/slog"

	"github.com/gatherhq/hub-api/config"
	"github.com/gatherhq/hub-api/internal/adapters/authroles"
	"github.com/gatherhq/hub-api/internal/adapters/devauth"
	"github.com/gatherhq/hub-api/internal/adapters/oidc"
	redisadapter "github.com/gatherhq/hub-api/internal/adapters/redis"
	"github.com/gatherhq/hub-api/internal/ports"
	"github.com/gatherhq/hub-api/internal/service"
)

// AuthDeps contains dependencies for building the auth service.
type AuthDeps struct {
	Auth           config.AuthConfig
	Hub            config.HubConfig
	Sessions       *redisadapter.SessionStore
	Directory      *service.DirectoryService
	Impersonations ports.ImpersonationStore
	Logger         *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid.
func BuildAuthService(deps AuthDeps) *service.AuthService {
	if deps.Sessions == nil {
		if deps.Logger != nil {
			deps.Logger.Warn("auth service disabled: session store not configured", "mode", deps.Auth.Mode)
		}
		return nil
	}

	provider := buildAuthProvider(deps)
	if provider == nil {
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:       provider,
		Sessions:       deps.Sessions,
		Roles:          authroles.StaticMapper{SuperAdminGroup: deps.Auth.SuperAdminGroup},
		Directory:      deps.Directory,
		Impersonations: deps.Impersonations,
		Logger:         deps.Logger,
		WarmupTimeout:  deps.Hub.LoginWarmupTimeout,
	})
}

//nolint:ireturn // the provider is selected by config at runtime.
func buildAuthProvider(deps AuthDeps) ports.AuthProvider {
	switch deps.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthProvider(deps)
	case config.AuthModeOAuth:
		return buildOIDCProvider(deps)
	default:
		return nil
	}
}

//nolint:ireturn // see buildAuthProvider.
func buildDevAuthProvider(deps AuthDeps) ports.AuthProvider {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          deps.Auth.DevAuth.UserID,
		Email:           deps.Auth.DevAuth.Email,
		DisplayName:     deps.Auth.DevAuth.DisplayName,
		Groups:          deps.Auth.DevAuth.Groups,
		SessionDuration: deps.Auth.DevAuth.SessionDuration,
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		}
		return nil
	}
	return prov
}

//nolint:ireturn // see buildAuthProvider.
func buildOIDCProvider(deps AuthDeps) ports.AuthProvider {
	// Only enable when fully configured
	oauth := deps.Auth.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		if deps.Logger != nil {
			deps.Logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
				"discovery_url_empty", oauth.DiscoveryURL == "",
				"client_id_empty", oauth.ClientID == "",
				"client_secret_empty", oauth.ClientSecret == "",
			)
		}
		return nil
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
		LogoutURL:    oauth.LogoutURL,
		Claims: oidc.ClaimPaths{
			UserID:      oauth.ClaimPaths.UserID,
			Email:       oauth.ClaimPaths.Email,
			DisplayName: oauth.ClaimPaths.DisplayName,
			Groups:      oauth.ClaimPaths.Groups,
		},
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("failed to create OIDC provider, auth disabled", "error", err)
		}
		return nil
	}
	return prov
}
