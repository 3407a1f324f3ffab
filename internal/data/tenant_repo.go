package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gatherhq/hub-api/internal/data/pgxutil"
	"github.com/gatherhq/hub-api/internal/domain/tenant"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
)

var (
	// ErrTenantNotFound is returned when a slug does not resolve to a tenant.
	ErrTenantNotFound error = apperrors.NotFound("tenant not found")
	// ErrTenantSlugExists is returned when creating a tenant with a duplicate slug.
	ErrTenantSlugExists error = apperrors.Conflict("tenant slug already exists")
)

// tenantRow is the flat shape tenant queries return; settings and the
// license snapshot are folded into the domain type on the way out.
type tenantRow struct {
	ID               string     `db:"id"`
	Slug             string     `db:"slug"`
	Name             string     `db:"name"`
	Status           string     `db:"status"`
	PublicSignup     bool       `db:"public_signup"`
	ApprovalRequired bool       `db:"approval_required"`
	EnabledSections  []string   `db:"enabled_sections"`
	LicenseStatus    string     `db:"license_status"`
	LicensePlan      string     `db:"license_plan"`
	LicenseExpiresAt *time.Time `db:"license_expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r tenantRow) toDomain() *tenant.Tenant {
	return &tenant.Tenant{
		ID:     r.ID,
		Slug:   r.Slug,
		Name:   r.Name,
		Status: tenant.Status(r.Status),
		Settings: tenant.Settings{
			PublicSignup:     r.PublicSignup,
			ApprovalRequired: r.ApprovalRequired,
			EnabledSections:  r.EnabledSections,
		},
		License: tenant.License{
			Status:    tenant.LicenseStatus(r.LicenseStatus),
			Plan:      r.LicensePlan,
			ExpiresAt: r.LicenseExpiresAt,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const tenantColumns = `id, slug, name, status, public_signup, approval_required,
	enabled_sections, license_status, license_plan, license_expires_at, created_at, updated_at`

const tenantGetBySlugQuery = `
	SELECT ` + tenantColumns + `
	FROM tenants
	WHERE slug = $1`

// TenantRepo provides database operations for tenants.
type TenantRepo struct {
	DB *sql.DB
}

// NewTenantRepo creates a new TenantRepo.
func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{DB: db}
}

// GetBySlug retrieves a tenant, its settings, and its license snapshot
// by slug. A tenant whose status marks it removed reads as not found.
func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, ErrTenantNotFound
	}

	var row tenantRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, tenantGetBySlugQuery, slug)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[tenantRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by slug: %w", err)
	}

	t := row.toDomain()
	if t.Removed() {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// CreateTenantInput carries the fields needed to create a tenant.
type CreateTenantInput struct {
	Slug             string
	Name             string
	PublicSignup     bool
	ApprovalRequired bool
	EnabledSections  []string
}

// Create inserts a new tenant with an active license snapshot.
func (r *TenantRepo) Create(ctx context.Context, in CreateTenantInput) (*tenant.Tenant, error) {
	slug := strings.TrimSpace(strings.ToLower(in.Slug))
	if slug == "" {
		return nil, errors.New("tenant slug is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errors.New("tenant name is required")
	}
	sections := in.EnabledSections
	if sections == nil {
		sections = []string{}
	}

	var row tenantRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO tenants (slug, name, public_signup, approval_required, enabled_sections)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+tenantColumns,
			slug,
			strings.TrimSpace(in.Name),
			in.PublicSignup,
			in.ApprovalRequired,
			sections,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[tenantRow])
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrTenantSlugExists
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return row.toDomain(), nil
}
