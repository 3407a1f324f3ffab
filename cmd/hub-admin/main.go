package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gatherhq/hub-api/config"
	redisadapter "github.com/gatherhq/hub-api/internal/adapters/redis"
	"github.com/gatherhq/hub-api/internal/bootstrap"
	"github.com/gatherhq/hub-api/internal/data"
	"github.com/gatherhq/hub-api/internal/domain/member"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"create-community": {
			name:        "create-community",
			description: "Create a community with an active license",
			run:         runCreateCommunity,
		},
		"list-memberships": {
			name:        "list-memberships",
			description: "List a user's memberships across communities",
			run:         runListMemberships,
		},
		"set-membership": {
			name:        "set-membership",
			description: "Set a member's role and status in a community",
			run:         runSetMembership,
		},
	}
}

func printUsage() {
	fmt.Fprintf(os.Stdout, "Usage: hub-admin <command> [flags]\n\n")
	fmt.Fprintf(os.Stdout, "Available commands:\n")
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stdout, "  %-20s %s\n", name, cmds[name].description)
	}
}

// withDB opens a database connection bounded by a timeout and a signal
// context and hands it to fn.
func withDB(cmdCtx *commandContext, timeout time.Duration, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	return fn(ctx, db)
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "migration timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDB(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runCreateCommunity(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("create-community", flag.ContinueOnError)
	slug := fs.String("slug", "", "URL slug for the community (required)")
	name := fs.String("name", "", "display name (defaults to slug)")
	publicSignup := fs.Bool("public-signup", true, "allow self-service registration")
	approval := fs.Bool("approval-required", true, "hold new members as PENDING until approved")
	sections := fs.String("sections", "", "comma-separated enabled sections (empty enables all)")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *slug == "" {
		return fmt.Errorf("-slug is required")
	}
	displayName := *name
	if displayName == "" {
		displayName = *slug
	}

	var enabled []string
	for _, s := range strings.Split(*sections, ",") {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			enabled = append(enabled, trimmed)
		}
	}

	return withDB(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewTenantRepo(db)
		t, err := repo.Create(ctx, data.CreateTenantInput{
			Slug:             *slug,
			Name:             displayName,
			PublicSignup:     *publicSignup,
			ApprovalRequired: *approval,
			EnabledSections:  enabled,
		})
		if err != nil {
			return fmt.Errorf("create community: %w", err)
		}
		cmdCtx.Logger.Info("community created", "id", t.ID, "slug", t.Slug, "name", t.Name)
		return nil
	})
}

func runListMemberships(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-memberships", flag.ContinueOnError)
	userID := fs.String("user", "", "user id to list memberships for (required)")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	return withDB(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewMembershipRepo(db, cmdCtx.Logger)
		memberships, err := repo.ListByUser(ctx, *userID)
		if err != nil {
			return fmt.Errorf("list memberships: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TENANT\tROLE\tSTATUS\tUPDATED")
		for _, m := range memberships {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				m.TenantID, m.Role, m.Status, m.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

// runSetMembership writes a membership directly and invalidates the
// user's cached directory so the change is visible immediately.
func runSetMembership(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-membership", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	userID := fs.String("user", "", "user id (required)")
	roleToken := fs.String("role", "MEMBER", "role (OWNER, ADMIN, MODERATOR, MEMBER)")
	statusToken := fs.String("status", "ACTIVE", "status (PENDING, ACTIVE, SUSPENDED, BANNED)")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenantID == "" || *userID == "" {
		return fmt.Errorf("-tenant and -user are required")
	}

	role, ok := member.NormalizeRole(*roleToken)
	if !ok {
		return fmt.Errorf("unknown role %q", *roleToken)
	}
	status, ok := member.NormalizeStatus(*statusToken)
	if !ok {
		return fmt.Errorf("unknown status %q", *statusToken)
	}

	return withDB(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewMembershipRepo(db, cmdCtx.Logger)
		m, err := repo.Upsert(ctx, member.Membership{
			TenantID: *tenantID,
			UserID:   *userID,
			Role:     role,
			Status:   status,
		})
		if err != nil {
			return fmt.Errorf("set membership: %w", err)
		}
		cmdCtx.Logger.Info("membership set",
			"tenant_id", m.TenantID, "user_id", m.UserID, "role", m.Role, "status", m.Status)

		// Best effort: drop the user's cached directory so the change
		// takes effect without waiting for the TTL backstop.
		invalidateDirectory(ctx, cmdCtx, *userID)
		return nil
	})
}

func invalidateDirectory(ctx context.Context, cmdCtx *commandContext, userID string) {
	redisClient, err := bootstrap.ConnectRedis(cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		cmdCtx.Logger.Warn("redis unavailable, directory cache not invalidated",
			"user_id", userID, "error", err)
		return
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	cache := redisadapter.NewDirectoryCache(redisClient, cmdCtx.Config.Hub.DirectoryCacheTTL)
	if err := cache.Invalidate(ctx, userID); err != nil {
		cmdCtx.Logger.Warn("directory cache invalidation failed", "user_id", userID, "error", err)
	}
}
