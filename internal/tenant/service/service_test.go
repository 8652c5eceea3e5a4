package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	adminstore "ssoportal/internal/admin/store"
	"ssoportal/internal/authz"
	"ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/store"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/requestcontext"
)

type TenantServiceSuite struct {
	suite.Suite
	tenants *store.InMemory
	admins  *adminstore.InMemory
	service *Service
	ctx     context.Context
}

func TestTenantServiceSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceSuite))
}

func (s *TenantServiceSuite) SetupTest() {
	s.tenants = store.NewInMemory()
	s.admins = adminstore.NewInMemory()
	s.service = New(s.tenants, s.admins)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func superAdmin() *authz.Principal {
	return &authz.Principal{
		ID:     uuid.New(),
		Email:  "root@portal.test",
		Role:   domain.RoleSuperAdmin,
		Active: true,
	}
}

func tenantAdmin(tenantID domain.TenantID) *authz.Principal {
	return &authz.Principal{
		ID:       uuid.New(),
		Email:    "admin@acme.test",
		TenantID: &tenantID,
		Role:     domain.RoleAdmin,
		Active:   true,
	}
}

func (s *TenantServiceSuite) TestOnboard() {
	s.Run("creates tenant with default branding", func() {
		result, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "Acme"})
		s.Require().NoError(err)
		s.Equal("Acme", result.Tenant.Name)
		s.True(result.Tenant.Active)
		s.Nil(result.Admin)
		s.Require().NotNil(result.Tenant.Branding)
		s.Equal(models.DefaultPrimaryColor, result.Tenant.Branding.PrimaryColor)
	})

	s.Run("creates first admin scoped to the new tenant", func() {
		result, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{
			Name:   "Globex",
			Domain: "globex.test",
			Admin: &OnboardAdmin{
				Email:    "owner@globex.test",
				Name:     "Owner",
				Password: "correct horse battery staple",
			},
		})
		s.Require().NoError(err)
		s.Require().NotNil(result.Admin)
		s.Equal(domain.RoleAdmin, result.Admin.Role)
		s.Require().NotNil(result.Admin.TenantID)
		s.Equal(result.Tenant.ID, *result.Admin.TenantID)

		stored, err := s.admins.FindByEmail(s.ctx, "owner@globex.test")
		s.Require().NoError(err)
		s.True(stored.ValidatePassword("correct horse battery staple"))
	})

	s.Run("tenant failure creates no admin", func() {
		// Full SQL rollback is covered by the postgres integration suite;
		// here we pin the ordering: the admin row is never written when the
		// tenant insert fails.
		s.tenants.FailCreate = errors.New("boom")
		_, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{
			Name:   "Initech",
			Domain: "initech.test",
			Admin: &OnboardAdmin{
				Email:    "owner@initech.test",
				Name:     "Owner",
				Password: "pw-pw-pw-pw",
			},
		})
		s.Require().Error(err)

		_, findErr := s.admins.FindByEmail(s.ctx, "owner@initech.test")
		s.Error(findErr)
	})

	s.Run("duplicate domain is a conflict", func() {
		_, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "A", Domain: "dup.test"})
		s.Require().NoError(err)
		_, err = s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "B", Domain: "dup.test"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("tenant admin may not onboard", func() {
		_, err := s.service.Onboard(s.ctx, tenantAdmin(uuid.New()), OnboardRequest{Name: "Nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("nil principal is unauthenticated", func() {
		_, err := s.service.Onboard(s.ctx, nil, OnboardRequest{Name: "Nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}

func (s *TenantServiceSuite) TestGet() {
	result, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "Acme"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID

	s.Run("own tenant is visible to any role", func() {
		viewer := &authz.Principal{ID: uuid.New(), TenantID: &tenantID, Role: domain.RoleViewer, Active: true}
		got, err := s.service.Get(s.ctx, viewer, tenantID)
		s.Require().NoError(err)
		s.Equal(tenantID, got.ID)
	})

	s.Run("foreign tenant is forbidden", func() {
		other := uuid.New()
		_, err := s.service.Get(s.ctx, tenantAdmin(other), tenantID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown tenant is not found", func() {
		_, err := s.service.Get(s.ctx, superAdmin(), uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *TenantServiceSuite) TestList() {
	for _, name := range []string{"A", "B", "C"} {
		_, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: name})
		s.Require().NoError(err)
	}

	s.Run("super admin sees all", func() {
		tenants, err := s.service.List(s.ctx, superAdmin(), 10, 0)
		s.Require().NoError(err)
		s.Len(tenants, 3)
	})

	s.Run("tenant admin is forbidden", func() {
		_, err := s.service.List(s.ctx, tenantAdmin(uuid.New()), 10, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *TenantServiceSuite) TestUpdate() {
	result, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "Acme", Domain: "acme.test"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID

	s.Run("own admin can rename and rebrand", func() {
		name := "Acme Corp"
		updated, err := s.service.Update(s.ctx, tenantAdmin(tenantID), tenantID, UpdateRequest{
			Name:     &name,
			Branding: &models.Branding{PrimaryColor: "#112233"},
		})
		s.Require().NoError(err)
		s.Equal("Acme Corp", updated.Name)
		s.Equal("#112233", updated.Branding.PrimaryColor)
		// Unset colors still get defaults.
		s.Equal(models.DefaultSecondaryColor, updated.Branding.SecondaryColor)
	})

	s.Run("empty name is rejected", func() {
		empty := ""
		_, err := s.service.Update(s.ctx, superAdmin(), tenantID, UpdateRequest{Name: &empty})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("viewer may not update", func() {
		viewer := &authz.Principal{ID: uuid.New(), TenantID: &tenantID, Role: domain.RoleViewer, Active: true}
		name := "X"
		_, err := s.service.Update(s.ctx, viewer, tenantID, UpdateRequest{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("domain collision is a conflict", func() {
		_, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "Other", Domain: "other.test"})
		s.Require().NoError(err)
		taken := "other.test"
		_, err = s.service.Update(s.ctx, superAdmin(), tenantID, UpdateRequest{Domain: &taken})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *TenantServiceSuite) TestDeactivate() {
	result, err := s.service.Onboard(s.ctx, superAdmin(), OnboardRequest{Name: "Acme"})
	s.Require().NoError(err)
	tenantID := result.Tenant.ID

	s.Run("tenant admin may not deactivate", func() {
		err := s.service.Deactivate(s.ctx, tenantAdmin(tenantID), tenantID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("super admin soft deletes", func() {
		s.Require().NoError(s.service.Deactivate(s.ctx, superAdmin(), tenantID))

		got, err := s.tenants.FindByID(s.ctx, tenantID)
		s.Require().NoError(err)
		s.False(got.Active)
	})
}
