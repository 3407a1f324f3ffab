package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// ClaimPathsConfig holds JMESPath expressions selecting identity fields
// from the merged token/userinfo claims. Empty values use the provider
// defaults (sub, email, name, groups).
type ClaimPathsConfig struct {
	UserID      string `env:"USER_ID"`
	Email       string `env:"EMAIL"`
	DisplayName string `env:"DISPLAY_NAME"`
	Groups      string `env:"GROUPS"`
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"hub"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:"hub"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`

	// ClaimPaths configures where in the IdP claims the identity fields live.
	ClaimPaths ClaimPathsConfig `envPrefix:"CLAIM_"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID      string   `env:"USER_ID"      envDefault:"dev-user"`
	Email       string   `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string   `env:"DISPLAY_NAME" envDefault:"Dev User"`
	Groups      []string `env:"GROUPS"       envDefault:"platform-operators" envSeparator:";"`

	// SessionDuration bounds dev sessions; zero uses the provider default.
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// SuperAdminGroup is the IdP group whose members become platform
	// operators. Membership in any other group maps to a regular user.
	SuperAdminGroup string `env:"SUPER_ADMIN_GROUP" envDefault:"platform-operators"`
}
