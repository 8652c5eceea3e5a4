// Package store defines end-user persistence. Stores return sentinel errors;
// services translate them into domain errors.
package store

import (
	"context"
	"time"

	"ssoportal/internal/user/models"
	"ssoportal/pkg/domain"
)

// Store persists end users.
type Store interface {
	// Create inserts a user. Returns sentinel.ErrAlreadyUsed when the
	// username or email is taken within the user's tenant.
	Create(ctx context.Context, user *models.User) error
	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	// FindByUsername matches within one tenant.
	FindByUsername(ctx context.Context, tenantID domain.TenantID, username string) (*models.User, error)
	// List returns users, optionally filtered to one tenant.
	List(ctx context.Context, tenantID *domain.TenantID, limit, offset int) ([]*models.User, error)
	// Update persists all mutable fields.
	Update(ctx context.Context, user *models.User) error
	// TouchLastLogin records a successful authentication.
	TouchLastLogin(ctx context.Context, id domain.UserID, at time.Time) error
}
