package models

import (
	"strings"
	"time"

	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

// Default branding applied when a tenant is onboarded without explicit colors.
const (
	DefaultPrimaryColor    = "#007bff"
	DefaultSecondaryColor  = "#6c757d"
	DefaultBackgroundColor = "#f8f9fa"
)

// Tenant is the aggregate root for a tenant organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Domain, when present, is lowercase and globally unique
//   - An inactive tenant must not act as the tenant scope for new
//     authorization decisions (enforced at the resolver)
type Tenant struct {
	ID        domain.TenantID `json:"id"`
	Name      string          `json:"name"`
	Domain    string          `json:"domain,omitempty"`
	Active    bool            `json:"active"`
	Config    map[string]any  `json:"config"`
	Branding  *Branding       `json:"branding,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Branding is the 1:1 UI customization record for a tenant.
type Branding struct {
	TenantID        domain.TenantID `json:"tenant_id"`
	LogoURL         string          `json:"logo_url,omitempty"`
	PrimaryColor    string          `json:"primary_color"`
	SecondaryColor  string          `json:"secondary_color"`
	BackgroundColor string          `json:"background_color"`
	CustomCSS       string          `json:"custom_css,omitempty"`
	CustomJS        string          `json:"custom_js,omitempty"`
}

// NewTenant validates and constructs an active tenant with default branding
// merged over the provided one.
func NewTenant(tenantID domain.TenantID, name, domainName string, config map[string]any, branding *Branding, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name must be 128 characters or less")
	}
	domainName = strings.ToLower(strings.TrimSpace(domainName))
	if config == nil {
		config = map[string]any{}
	}

	b := Branding{TenantID: tenantID}
	if branding != nil {
		b = *branding
		b.TenantID = tenantID
	}
	b.ApplyDefaults()

	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Domain:    domainName,
		Active:    true,
		Config:    config,
		Branding:  &b,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyDefaults fills unset branding colors with the portal defaults.
func (b *Branding) ApplyDefaults() {
	if b.PrimaryColor == "" {
		b.PrimaryColor = DefaultPrimaryColor
	}
	if b.SecondaryColor == "" {
		b.SecondaryColor = DefaultSecondaryColor
	}
	if b.BackgroundColor == "" {
		b.BackgroundColor = DefaultBackgroundColor
	}
}

func (t *Tenant) IsActive() bool { return t.Active }

// Deactivate soft-deletes the tenant. Hard deletes are not part of the
// default lifecycle.
func (t *Tenant) Deactivate(now time.Time) {
	t.Active = false
	t.UpdatedAt = now
}
