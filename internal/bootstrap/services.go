package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/gatherhq/hub-api/config"
	redisadapter "github.com/gatherhq/hub-api/internal/adapters/redis"
	"github.com/gatherhq/hub-api/internal/data"
	"github.com/gatherhq/hub-api/internal/observability/audit"
	"github.com/gatherhq/hub-api/internal/service"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth           *service.AuthService
	Directory      *service.DirectoryService
	Memberships    *service.MembershipService
	Impersonations *service.ImpersonationService
	Resolvers      *service.ResolverFactory
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, Redis-backed stores, and services.
func NewServices(deps *ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	tenantRepo := data.NewTenantRepo(deps.DB)
	membershipRepo := data.NewMembershipRepo(deps.DB, logger)

	sessions := redisadapter.NewSessionStoreWithPrefix(deps.RedisClient, "session:")
	directoryCache := redisadapter.NewDirectoryCache(deps.RedisClient, cfg.Hub.DirectoryCacheTTL)
	overlays := redisadapter.NewImpersonationStore(deps.RedisClient, cfg.Hub.ImpersonationTTL)

	auditSink := audit.NewSlogSink(logger)

	directory := service.NewDirectoryService(service.DirectoryServiceOptions{
		Memberships: membershipRepo,
		Cache:       directoryCache,
		Logger:      logger,
	})

	auth := BuildAuthService(AuthDeps{
		Auth:           cfg.Auth,
		Hub:            cfg.Hub,
		Sessions:       sessions,
		Directory:      directory,
		Impersonations: overlays,
		Logger:         logger,
	})

	impersonations := service.NewImpersonationService(service.ImpersonationServiceOptions{
		Memberships: membershipRepo,
		Overlays:    overlays,
		Directory:   directory,
		Audit:       auditSink,
		Logger:      logger,
	})

	memberships := service.NewMembershipService(service.MembershipServiceOptions{
		Tenants:     tenantRepo,
		Memberships: membershipRepo,
		Directory:   directory,
		Audit:       auditSink,
		Logger:      logger,
	})

	resolvers := &service.ResolverFactory{
		Tenants:        tenantRepo,
		Memberships:    membershipRepo,
		Impersonations: overlays,
		Logger:         logger,
	}

	return ServiceContainer{
		Auth:           auth,
		Directory:      directory,
		Memberships:    memberships,
		Impersonations: impersonations,
		Resolvers:      resolvers,
	}
}
