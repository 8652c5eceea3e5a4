package models

import (
	"strings"
	"time"

	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/password"
)

// Admin is a back-office principal. TenantID is nil for super-admins; roles
// admin and viewer always carry a tenant.
type Admin struct {
	ID        domain.AdminID   `json:"id"`
	TenantID  *domain.TenantID `json:"tenant_id,omitempty"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
	Salt      string           `json:"-"`
	Hash      string           `json:"-"`
	Role      domain.Role      `json:"role"`
	Active    bool             `json:"active"`
	LastLogin *time.Time       `json:"last_login,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewAdmin validates and constructs an active admin with a freshly salted
// credential.
func NewAdmin(adminID domain.AdminID, tenantID *domain.TenantID, email, name, plainPassword string, role domain.Role, now time.Time) (*Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a valid email is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if role == "" {
		role = domain.RoleAdmin
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid role")
	}
	if role != domain.RoleSuperAdmin && tenantID == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "role requires a tenant")
	}

	admin := &Admin{
		ID:        adminID,
		TenantID:  tenantID,
		Email:     email,
		Name:      name,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := admin.SetPassword(plainPassword); err != nil {
		return nil, err
	}
	return admin, nil
}

// SetPassword replaces the stored credential with a fresh salt and hash.
func (a *Admin) SetPassword(plain string) error {
	salted, err := password.NewSalted(plain)
	if err != nil {
		return err
	}
	a.Salt = salted.Salt
	a.Hash = salted.Hash
	return nil
}

// ValidatePassword verifies a password attempt in constant time.
func (a *Admin) ValidatePassword(plain string) bool {
	return password.Salted{Salt: a.Salt, Hash: a.Hash}.Verify(plain)
}

// IsSuperAdmin reports whether the admin has system-wide scope.
func (a *Admin) IsSuperAdmin() bool { return a.Role == domain.RoleSuperAdmin }
