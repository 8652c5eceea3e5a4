// Package domain holds the identifier and role types shared across services.
package domain

import "github.com/google/uuid"

// Typed aliases keep signatures honest without wrapping uuid.UUID.
type (
	TenantID = uuid.UUID
	AdminID  = uuid.UUID
	UserID   = uuid.UUID
)

// Role is a back-office principal role.
type Role string

const (
	// RoleSuperAdmin operates across all tenants.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin manages a single tenant.
	RoleAdmin Role = "admin"
	// RoleViewer has read-only access within a single tenant.
	RoleViewer Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleViewer:
		return true
	}
	return false
}
