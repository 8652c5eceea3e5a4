// Package authz is the single authorization gate for every tenant-scoped
// operation. Handlers must route reads, writes and listings through it;
// nothing else in the tree makes tenant-scoping decisions.
package authz

import (
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

// Principal is the authenticated back-office actor as seen by the gate.
// TenantID is nil for super-admins.
type Principal struct {
	ID       domain.AdminID
	Email    string
	TenantID *domain.TenantID
	Role     domain.Role
	Active   bool
}

// IsSuperAdmin reports whether the principal has unrestricted tenant scope.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == domain.RoleSuperAdmin
}

// Authorize allows or denies an operation. Rules, in order:
//
//  1. absent or inactive principal -> Unauthenticated
//  2. required roles set and principal's role not among them -> Forbidden
//  3. non-super-admins may only touch resources in their own tenant
//  4. super-admins bypass tenant scoping entirely
//
// resourceTenant is the tenant the resource belongs to; pass nil when the
// operation has no tenant-scoped resource (e.g. listing, which is filtered
// separately via ScopeFilter).
func Authorize(p *Principal, required []domain.Role, resourceTenant *domain.TenantID) error {
	if p == nil || !p.Active {
		return dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}
	if len(required) > 0 && !roleIn(p.Role, required) {
		return dErrors.New(dErrors.CodeForbidden, "insufficient role")
	}
	if p.IsSuperAdmin() {
		return nil
	}
	if resourceTenant != nil {
		if p.TenantID == nil || *p.TenantID != *resourceTenant {
			return dErrors.New(dErrors.CodeForbidden, "cross-tenant access denied")
		}
	}
	return nil
}

// ScopeTenant normalizes the tenant assignment of a create/update. A
// non-super-admin writing a resource tagged for a foreign tenant has the tag
// silently pinned to their own tenant; this is a normalization, not a
// rejection. Super-admins may assign any tenant, or none.
func ScopeTenant(p *Principal, requested *domain.TenantID) (*domain.TenantID, error) {
	if p == nil || !p.Active {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}
	if p.IsSuperAdmin() {
		return requested, nil
	}
	if p.TenantID == nil {
		// Roles admin/viewer require a tenant; a row like this is corrupt.
		return nil, dErrors.New(dErrors.CodeForbidden, "principal has no tenant scope")
	}
	own := *p.TenantID
	return &own, nil
}

// ScopeFilter returns the implicit tenant filter for list operations: the
// principal's own tenant, or nil for super-admins (no filter).
func ScopeFilter(p *Principal) *domain.TenantID {
	if p == nil || p.IsSuperAdmin() || p.TenantID == nil {
		return nil
	}
	own := *p.TenantID
	return &own
}

func roleIn(role domain.Role, set []domain.Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
