package config

import "time"

// HubConfig tunes membership resolution, the directory cache, and
// impersonation overlays.
type HubConfig struct {
	// DirectoryCacheTTL is the backstop TTL on cached membership
	// directories. Correctness relies on explicit invalidation; the TTL
	// only bounds staleness after a missed invalidation.
	DirectoryCacheTTL time.Duration `env:"HUB_DIRECTORY_CACHE_TTL" envDefault:"5m"`

	// ImpersonationTTL bounds how long an impersonation overlay stays
	// active before it is ignored and expired.
	ImpersonationTTL time.Duration `env:"HUB_IMPERSONATION_TTL" envDefault:"24h"`

	// LoginWarmupTimeout bounds the post-login membership directory
	// warm-up. When the warm-up cannot finish in time, login still
	// succeeds with least privilege.
	LoginWarmupTimeout time.Duration `env:"HUB_LOGIN_WARMUP_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to hub configuration values.
func (h *HubConfig) Sanitize() {
	if h.DirectoryCacheTTL <= 0 {
		h.DirectoryCacheTTL = 5 * time.Minute
	}
	if h.ImpersonationTTL <= 0 {
		h.ImpersonationTTL = 24 * time.Hour
	}
	if h.LoginWarmupTimeout <= 0 {
		h.LoginWarmupTimeout = 10 * time.Second
	}
}
