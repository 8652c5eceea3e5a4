// Package store defines tenant-admin persistence. Stores return sentinel
// errors; services translate them into domain errors.
package store

import (
	"context"
	"time"

	"ssoportal/internal/admin/models"
	"ssoportal/pkg/domain"
)

// Store persists tenant admins. Implementations must honor a transaction
// carried in context so tenant onboarding can create the first admin
// atomically with the tenant.
type Store interface {
	// Create inserts an admin. Returns sentinel.ErrAlreadyUsed when the
	// email is taken (emails are globally unique).
	Create(ctx context.Context, admin *models.Admin) error
	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.AdminID) (*models.Admin, error)
	// FindByEmail matches case-insensitively on the stored lowercase email.
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
	// List returns admins, optionally filtered to one tenant.
	List(ctx context.Context, tenantID *domain.TenantID) ([]*models.Admin, error)
	// Update persists all mutable fields.
	Update(ctx context.Context, admin *models.Admin) error
	// TouchLastLogin records a successful authentication.
	TouchLastLogin(ctx context.Context, id domain.AdminID, at time.Time) error
}
