package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gatherhq/hub-api/internal/data/pgxutil"
	"github.com/gatherhq/hub-api/internal/domain/member"
	apperrors "github.com/gatherhq/hub-api/internal/errors"
)

var (
	// ErrMembershipNotFound is returned by mutations that require an existing membership.
	ErrMembershipNotFound error = apperrors.NotFound("membership not found")
	// ErrMembershipExists is returned when an insert collides with the (tenant, user) uniqueness constraint.
	ErrMembershipExists error = apperrors.Conflict("membership already exists")
)

// membershipRow is the raw storage shape. Role and status are plain
// strings here; normalization happens in toDomain, the single ingestion
// point for raw tokens out of the database.
type membershipRow struct {
	TenantID  string    `db:"tenant_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// toDomain canonicalizes a stored row. Unknown tokens collapse to the
// safe defaults and are logged so data-quality drift stays visible.
func (r membershipRow) toDomain(ctx context.Context, logger *slog.Logger) member.Membership {
	role, roleOK := member.NormalizeRole(r.Role)
	status, statusOK := member.NormalizeStatus(r.Status)
	if logger != nil {
		if !roleOK {
			logger.WarnContext(ctx, "unknown membership role token",
				"tenant_id", r.TenantID, "user_id", r.UserID, "raw_role", r.Role)
		}
		if !statusOK {
			logger.WarnContext(ctx, "unknown membership status token",
				"tenant_id", r.TenantID, "user_id", r.UserID, "raw_status", r.Status)
		}
	}
	return member.Membership{
		TenantID:  r.TenantID,
		UserID:    r.UserID,
		Role:      role,
		Status:    status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const membershipColumns = `tenant_id, user_id, role, status, created_at, updated_at`

const (
	membershipGetQuery = `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE tenant_id = $1 AND user_id = $2`

	membershipListByUserQuery = `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		ORDER BY tenant_id`
)

// MembershipRepo provides database operations for memberships.
type MembershipRepo struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// NewMembershipRepo creates a new MembershipRepo.
func NewMembershipRepo(db *sql.DB, logger *slog.Logger) *MembershipRepo {
	return &MembershipRepo{DB: db, Logger: logger}
}

// Get retrieves the membership for a (tenant, user) pair. Absence is a
// valid state, not a failure: it returns (nil, nil).
func (r *MembershipRepo) Get(ctx context.Context, tenantID, userID string) (*member.Membership, error) {
	if tenantID == "" || userID == "" {
		return nil, nil
	}

	var row membershipRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, membershipGetQuery, tenantID, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[membershipRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	m := row.toDomain(ctx, r.Logger)
	return &m, nil
}

// ListByUser retrieves all memberships for a user across tenants.
// A user with no memberships gets an empty slice, not an error.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID string) ([]member.Membership, error) {
	if userID == "" {
		return []member.Membership{}, nil
	}

	var rowsOut []membershipRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, membershipListByUserQuery, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[membershipRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	memberships := make([]member.Membership, 0, len(rowsOut))
	for _, row := range rowsOut {
		memberships = append(memberships, row.toDomain(ctx, r.Logger))
	}
	return memberships, nil
}

// Upsert creates the membership or, when the (tenant, user) row already
// exists, refreshes its role and status. Used by the join flow, where a
// re-join of a pending membership must not error.
func (r *MembershipRepo) Upsert(ctx context.Context, m member.Membership) (*member.Membership, error) {
	if m.TenantID == "" || m.UserID == "" {
		return nil, errors.New("tenant ID and user ID are required")
	}

	var row membershipRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO memberships (tenant_id, user_id, role, status)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT ON CONSTRAINT memberships_tenant_user_key
			DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, updated_at = now()
			RETURNING `+membershipColumns,
			m.TenantID, m.UserID, string(m.Role), string(m.Status),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[membershipRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert membership: %w", mapMembershipWriteErr(err))
	}

	out := row.toDomain(ctx, r.Logger)
	return &out, nil
}

// UpdateRoleStatus changes the role and status of an existing membership.
func (r *MembershipRepo) UpdateRoleStatus(ctx context.Context, m member.Membership) (*member.Membership, error) {
	if m.TenantID == "" || m.UserID == "" {
		return nil, errors.New("tenant ID and user ID are required")
	}

	var row membershipRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE memberships
			SET role = $3, status = $4, updated_at = now()
			WHERE tenant_id = $1 AND user_id = $2
			RETURNING `+membershipColumns,
			m.TenantID, m.UserID, string(m.Role), string(m.Status),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[membershipRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("update membership: %w", err)
	}

	out := row.toDomain(ctx, r.Logger)
	return &out, nil
}

// Delete removes a membership. Deleting an absent membership is a no-op.
func (r *MembershipRepo) Delete(ctx context.Context, tenantID, userID string) error {
	if tenantID == "" || userID == "" {
		return nil
	}

	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`DELETE FROM memberships WHERE tenant_id = $1 AND user_id = $2`,
			tenantID, userID,
		)
		if err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})
}

func mapMembershipWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrMembershipExists
	}
	return err
}
