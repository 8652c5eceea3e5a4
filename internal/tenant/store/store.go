// Package store defines the tenant persistence contract. Stores return
// sentinel errors; services translate them into domain errors.
package store

import (
	"context"

	"ssoportal/internal/tenant/models"
	"ssoportal/pkg/domain"
)

// Store persists tenants together with their 1:1 branding row.
//
// Implementations must honor a transaction carried in context (pkg/platform/tx)
// so onboarding can create the tenant, branding and first admin atomically.
type Store interface {
	// Create inserts the tenant and its branding. Returns
	// sentinel.ErrAlreadyUsed when the domain is taken.
	Create(ctx context.Context, tenant *models.Tenant) error
	// FindByID returns the tenant with branding, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id domain.TenantID) (*models.Tenant, error)
	// FindByDomain matches the registered domain exactly (stored lowercase).
	FindByDomain(ctx context.Context, domainName string) (*models.Tenant, error)
	// List returns tenants ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	// Update persists tenant fields and branding. Returns
	// sentinel.ErrNotFound when the tenant does not exist and
	// sentinel.ErrAlreadyUsed when the new domain is taken.
	Update(ctx context.Context, tenant *models.Tenant) error
}
