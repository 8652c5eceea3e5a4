package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ssoportal/internal/tenant/models"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
	"ssoportal/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres is the production Store backed by the shared connection pool.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, tenant *models.Tenant) error {
	cfg, err := json.Marshal(tenant.Config)
	if err != nil {
		return fmt.Errorf("marshal tenant config: %w", err)
	}

	q := s.q(ctx)
	_, err = q.ExecContext(ctx, `
		INSERT INTO tenants (id, name, domain, active, config, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		tenant.ID, tenant.Name, strings.ToLower(tenant.Domain), tenant.Active, cfg,
		tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		return translatePQ(err)
	}

	b := tenant.Branding
	if b == nil {
		b = &models.Branding{TenantID: tenant.ID}
		b.ApplyDefaults()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO tenant_brandings
			(tenant_id, logo_url, primary_color, secondary_color, background_color, custom_css, custom_js)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenant.ID, b.LogoURL, b.PrimaryColor, b.SecondaryColor, b.BackgroundColor, b.CustomCSS, b.CustomJS,
	)
	if err != nil {
		return translatePQ(err)
	}
	return nil
}

const tenantColumns = `
	t.id, t.name, COALESCE(t.domain, ''), t.active, t.config, t.created_at, t.updated_at,
	b.logo_url, b.primary_color, b.secondary_color, b.background_color, b.custom_css, b.custom_js`

const tenantFrom = `
	FROM tenants t
	LEFT JOIN tenant_brandings b ON b.tenant_id = t.id`

func (s *Postgres) FindByID(ctx context.Context, id domain.TenantID) (*models.Tenant, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+tenantColumns+tenantFrom+` WHERE t.id = $1`, id)
	return scanTenant(row)
}

func (s *Postgres) FindByDomain(ctx context.Context, domainName string) (*models.Tenant, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+tenantColumns+tenantFrom+` WHERE t.domain = $1`, strings.ToLower(domainName))
	return scanTenant(row)
}

func (s *Postgres) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+tenantColumns+tenantFrom+` ORDER BY t.created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []*models.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, tenant *models.Tenant) error {
	cfg, err := json.Marshal(tenant.Config)
	if err != nil {
		return fmt.Errorf("marshal tenant config: %w", err)
	}

	q := s.q(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, domain = NULLIF($3, ''), active = $4, config = $5, updated_at = $6
		WHERE id = $1`,
		tenant.ID, tenant.Name, strings.ToLower(tenant.Domain), tenant.Active, cfg, tenant.UpdatedAt,
	)
	if err != nil {
		return translatePQ(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	if b := tenant.Branding; b != nil {
		_, err = q.ExecContext(ctx, `
			INSERT INTO tenant_brandings
				(tenant_id, logo_url, primary_color, secondary_color, background_color, custom_css, custom_js)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id) DO UPDATE SET
				logo_url = EXCLUDED.logo_url,
				primary_color = EXCLUDED.primary_color,
				secondary_color = EXCLUDED.secondary_color,
				background_color = EXCLUDED.background_color,
				custom_css = EXCLUDED.custom_css,
				custom_js = EXCLUDED.custom_js`,
			tenant.ID, b.LogoURL, b.PrimaryColor, b.SecondaryColor, b.BackgroundColor, b.CustomCSS, b.CustomJS,
		)
		if err != nil {
			return translatePQ(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		t   models.Tenant
		cfg []byte
		b   models.Branding

		logoURL, primary, secondary, background, css, js sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Domain, &t.Active, &cfg, &t.CreatedAt, &t.UpdatedAt,
		&logoURL, &primary, &secondary, &background, &css, &js,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}

	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &t.Config); err != nil {
			return nil, fmt.Errorf("unmarshal tenant config: %w", err)
		}
	}
	if t.Config == nil {
		t.Config = map[string]any{}
	}

	b.TenantID = t.ID
	b.LogoURL = logoURL.String
	b.PrimaryColor = primary.String
	b.SecondaryColor = secondary.String
	b.BackgroundColor = background.String
	b.CustomCSS = css.String
	b.CustomJS = js.String
	b.ApplyDefaults()
	t.Branding = &b

	return &t, nil
}

func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", sentinel.ErrAlreadyUsed, pqErr.Constraint)
	}
	return err
}
