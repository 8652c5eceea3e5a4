// Package service orchestrates tenant lifecycle management.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	adminmodels "ssoportal/internal/admin/models"
	"ssoportal/internal/authz"
	"ssoportal/internal/platform/metrics"
	"ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/store"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/platform/sentinel"
	"ssoportal/pkg/platform/tx"
	"ssoportal/pkg/requestcontext"
)

// AdminCreator is the slice of the admin store onboarding needs. It must
// honor a transaction carried in context.
type AdminCreator interface {
	Create(ctx context.Context, admin *adminmodels.Admin) error
}

// Service orchestrates tenant lifecycle management.
type Service struct {
	tenants store.Store
	admins  AdminCreator
	txr     tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.txr = r }
}

// New constructs a Service. Without WithTxRunner the service runs onboarding
// against a pass-through runner, which is only appropriate with the memory
// stores.
func New(tenants store.Store, admins AdminCreator, opts ...Option) *Service {
	s := &Service{
		tenants: tenants,
		admins:  admins,
		txr:     tx.NoopRunner{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnboardRequest creates a tenant, its branding, and optionally its first
// admin in one atomic operation.
type OnboardRequest struct {
	Name     string           `json:"name"`
	Domain   string           `json:"domain,omitempty"`
	Config   map[string]any   `json:"config,omitempty"`
	Branding *models.Branding `json:"branding,omitempty"`
	Admin    *OnboardAdmin    `json:"admin,omitempty"`
}

// OnboardAdmin is the first admin created with a tenant. Role is always
// "admin"; super-admins are never minted through onboarding.
type OnboardAdmin struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// OnboardResult reports what onboarding created.
type OnboardResult struct {
	Tenant *models.Tenant      `json:"tenant"`
	Admin  *adminmodels.Admin  `json:"admin,omitempty"`
}

// Onboard creates tenant + branding + first admin atomically. Restricted to
// super-admins. Partial failure leaves no rows behind.
func (s *Service) Onboard(ctx context.Context, principal *authz.Principal, req OnboardRequest) (*OnboardResult, error) {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin}, nil); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	tenant, err := models.NewTenant(uuid.New(), req.Name, req.Domain, req.Config, req.Branding, now)
	if err != nil {
		return nil, err
	}

	var firstAdmin *adminmodels.Admin
	if req.Admin != nil {
		tid := tenant.ID
		firstAdmin, err = adminmodels.NewAdmin(uuid.New(), &tid, req.Admin.Email, req.Admin.Name, req.Admin.Password, domain.RoleAdmin, now)
		if err != nil {
			return nil, err
		}
	}

	err = s.txr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tenants.Create(txCtx, tenant); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "tenant domain already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
		}
		if firstAdmin != nil {
			if err := s.admins.Create(txCtx, firstAdmin); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.New(dErrors.CodeConflict, "admin email already in use")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create first admin")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TenantsOnboarded.Inc()
	}
	s.logger.InfoContext(ctx, "tenant onboarded",
		"tenant_id", tenant.ID,
		"has_admin", firstAdmin != nil,
	)
	return &OnboardResult{Tenant: tenant, Admin: firstAdmin}, nil
}

// Get returns a tenant visible to the principal (super-admin or any role
// within that tenant).
func (s *Service) Get(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID) (*models.Tenant, error) {
	if err := authz.Authorize(principal, nil, &tenantID); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	return tenant, nil
}

// List returns all tenants. Restricted to super-admins.
func (s *Service) List(ctx context.Context, principal *authz.Principal, limit, offset int) ([]*models.Tenant, error) {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin}, nil); err != nil {
		return nil, err
	}
	tenants, err := s.tenants.List(ctx, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, nil
}

// UpdateRequest carries the mutable tenant fields. Nil pointers leave the
// current value untouched.
type UpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Domain   *string          `json:"domain,omitempty"`
	Active   *bool            `json:"active,omitempty"`
	Config   map[string]any   `json:"config,omitempty"`
	Branding *models.Branding `json:"branding,omitempty"`
}

// Update modifies a tenant and its branding transactionally. Allowed for
// super-admins and the tenant's own admins.
func (s *Service) Update(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID, req UpdateRequest) (*models.Tenant, error) {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, &tenantID); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}

	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.Domain != nil {
		tenant.Domain = *req.Domain
	}
	if req.Active != nil {
		tenant.Active = *req.Active
	}
	if req.Config != nil {
		tenant.Config = req.Config
	}
	if req.Branding != nil {
		b := *req.Branding
		b.TenantID = tenant.ID
		b.ApplyDefaults()
		tenant.Branding = &b
	}
	tenant.UpdatedAt = requestcontext.Now(ctx)

	if tenant.Name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name cannot be empty")
	}

	err = s.txr.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tenants.Update(txCtx, tenant); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "tenant domain already in use")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "tenant not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// Deactivate soft-deletes a tenant. Restricted to super-admins.
func (s *Service) Deactivate(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID) error {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin}, nil); err != nil {
		return err
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}

	tenant.Deactivate(requestcontext.Now(ctx))
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate tenant")
	}

	s.logger.InfoContext(ctx, "tenant deactivated", "tenant_id", tenantID)
	return nil
}
