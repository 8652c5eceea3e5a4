package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"ssoportal/internal/admin/models"
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

const adminColumns = `id, tenant_id, email, name, salt, hash, role, active, last_login, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, admin *models.Admin) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tenant_admins (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		admin.ID, admin.TenantID, strings.ToLower(admin.Email), admin.Name,
		admin.Salt, admin.Hash, admin.Role, admin.Active, admin.LastLogin,
		admin.CreatedAt, admin.UpdatedAt,
	)
	return translatePQ(err)
}

func (s *Postgres) FindByID(ctx context.Context, id domain.AdminID) (*models.Admin, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM tenant_admins WHERE id = $1`, id)
	return scanAdmin(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM tenant_admins WHERE email = $1`, strings.ToLower(email))
	return scanAdmin(row)
}

func (s *Postgres) List(ctx context.Context, tenantID *domain.TenantID) ([]*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM tenant_admins`
	args := []any{}
	if tenantID != nil {
		query += ` WHERE tenant_id = $1`
		args = append(args, *tenantID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := []*models.Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, admin *models.Admin) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tenant_admins
		SET tenant_id = $2, email = $3, name = $4, salt = $5, hash = $6,
		    role = $7, active = $8, updated_at = $9
		WHERE id = $1`,
		admin.ID, admin.TenantID, strings.ToLower(admin.Email), admin.Name,
		admin.Salt, admin.Hash, admin.Role, admin.Active, admin.UpdatedAt,
	)
	if err != nil {
		return translatePQ(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) TouchLastLogin(ctx context.Context, id domain.AdminID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE tenant_admins SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last_login: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch last_login: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(row rowScanner) (*models.Admin, error) {
	var (
		a         models.Admin
		tenantID  sql.Null[domain.TenantID]
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&a.ID, &tenantID, &a.Email, &a.Name, &a.Salt, &a.Hash,
		&a.Role, &a.Active, &lastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	if tenantID.Valid {
		tid := tenantID.V
		a.TenantID = &tid
	}
	if lastLogin.Valid {
		ll := lastLogin.Time
		a.LastLogin = &ll
	}
	return &a, nil
}

func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", sentinel.ErrAlreadyUsed, pqErr.Constraint)
	}
	return err
}
