package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ssoportal/internal/admin/models"
	"ssoportal/internal/admin/store"
	"ssoportal/internal/authz"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/requestcontext"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type AdminServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, testSecret, 7*24*time.Hour)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *AdminServiceSuite) seedAdmin(email, password string, role domain.Role, tenantID *domain.TenantID) *models.Admin {
	admin, err := models.NewAdmin(uuid.New(), tenantID, email, "Seed Admin", password, role, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, admin))
	return admin
}

func (s *AdminServiceSuite) TestAuthenticate() {
	tid := uuid.New()
	admin := s.seedAdmin("admin@acme.test", "hunter2hunter2", domain.RoleAdmin, &tid)

	s.Run("valid credentials issue a token and bump last_login", func() {
		result, err := s.service.Authenticate(s.ctx, "admin@acme.test", "hunter2hunter2")
		s.Require().NoError(err)
		s.NotEmpty(result.Token)
		s.Require().NotNil(result.Admin.LastLogin)
		s.Equal(s.now, *result.Admin.LastLogin)

		stored, err := s.store.FindByID(s.ctx, admin.ID)
		s.Require().NoError(err)
		s.NotNil(stored.LastLogin)
	})

	s.Run("token carries subject, tenant and role claims", func() {
		result, err := s.service.Authenticate(s.ctx, "admin@acme.test", "hunter2hunter2")
		s.Require().NoError(err)

		var claims Claims
		parsed, err := jwt.ParseWithClaims(result.Token, &claims, func(*jwt.Token) (any, error) {
			return testSecret, nil
		}, jwt.WithTimeFunc(func() time.Time { return s.now }))
		s.Require().NoError(err)
		s.True(parsed.Valid)
		s.Equal(admin.ID.String(), claims.Subject)
		s.Equal(tid.String(), claims.TenantID)
		s.Equal(domain.RoleAdmin, claims.Role)
		s.Equal(s.now.Add(7*24*time.Hour).Unix(), claims.ExpiresAt.Unix())
	})

	s.Run("email casing does not matter", func() {
		_, err := s.service.Authenticate(s.ctx, "ADMIN@ACME.TEST", "hunter2hunter2")
		s.NoError(err)
	})

	s.Run("unknown email and wrong password are indistinguishable", func() {
		_, unknownErr := s.service.Authenticate(s.ctx, "nobody@acme.test", "hunter2hunter2")
		_, wrongErr := s.service.Authenticate(s.ctx, "admin@acme.test", "wrong-password")

		s.Require().Error(unknownErr)
		s.Require().Error(wrongErr)
		s.True(dErrors.HasCode(unknownErr, dErrors.CodeUnauthenticated))
		s.True(dErrors.HasCode(wrongErr, dErrors.CodeUnauthenticated))
		s.Equal(unknownErr.Error(), wrongErr.Error())
	})

	s.Run("inactive admin cannot authenticate", func() {
		admin.Active = false
		s.Require().NoError(s.store.Update(s.ctx, admin))
		defer func() {
			admin.Active = true
			s.Require().NoError(s.store.Update(s.ctx, admin))
		}()

		_, err := s.service.Authenticate(s.ctx, "admin@acme.test", "hunter2hunter2")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	s.Run("missing input is a bad request", func() {
		_, err := s.service.Authenticate(s.ctx, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *AdminServiceSuite) TestLoadPrincipal() {
	tid := uuid.New()
	admin := s.seedAdmin("admin@acme.test", "hunter2hunter2", domain.RoleAdmin, &tid)
	result, err := s.service.Authenticate(s.ctx, "admin@acme.test", "hunter2hunter2")
	s.Require().NoError(err)

	s.Run("valid token loads the principal", func() {
		principal, err := s.service.LoadPrincipal(s.ctx, result.Token)
		s.Require().NoError(err)
		s.Equal(admin.ID, principal.ID)
		s.Equal(domain.RoleAdmin, principal.Role)
		s.Require().NotNil(principal.TenantID)
		s.Equal(tid, *principal.TenantID)
	})

	s.Run("garbage token is rejected", func() {
		_, err := s.service.LoadPrincipal(s.ctx, "not-a-token")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	s.Run("deactivation revokes an otherwise valid token", func() {
		admin.Active = false
		s.Require().NoError(s.store.Update(s.ctx, admin))

		_, err := s.service.LoadPrincipal(s.ctx, result.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}

func (s *AdminServiceSuite) TestCreate() {
	tid := uuid.New()
	superPrincipal := &authz.Principal{ID: uuid.New(), Role: domain.RoleSuperAdmin, Active: true}
	adminPrincipal := &authz.Principal{ID: uuid.New(), TenantID: &tid, Role: domain.RoleAdmin, Active: true}

	s.Run("super admin can create any role in any tenant", func() {
		other := uuid.New()
		created, err := s.service.Create(s.ctx, superPrincipal, CreateRequest{
			Email:    "viewer@other.test",
			Name:     "Viewer",
			Password: "pw-pw-pw-pw",
			TenantID: &other,
			Role:     domain.RoleViewer,
		})
		s.Require().NoError(err)
		s.Equal(domain.RoleViewer, created.Role)
		s.Equal(other, *created.TenantID)
	})

	s.Run("tenant admin is pinned to own tenant and role admin", func() {
		foreign := uuid.New()
		created, err := s.service.Create(s.ctx, adminPrincipal, CreateRequest{
			Email:    "new@acme.test",
			Name:     "New Admin",
			Password: "pw-pw-pw-pw",
			TenantID: &foreign,
			Role:     domain.RoleSuperAdmin,
		})
		s.Require().NoError(err)
		s.Equal(domain.RoleAdmin, created.Role)
		s.Equal(tid, *created.TenantID)
	})

	s.Run("viewer may not create admins", func() {
		viewer := &authz.Principal{ID: uuid.New(), TenantID: &tid, Role: domain.RoleViewer, Active: true}
		_, err := s.service.Create(s.ctx, viewer, CreateRequest{
			Email:    "x@acme.test",
			Name:     "X",
			Password: "pw-pw-pw-pw",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("duplicate email is a conflict", func() {
		s.seedAdmin("dup@acme.test", "pw-pw-pw-pw", domain.RoleAdmin, &tid)
		_, err := s.service.Create(s.ctx, adminPrincipal, CreateRequest{
			Email:    "dup@acme.test",
			Name:     "Dup",
			Password: "pw-pw-pw-pw",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *AdminServiceSuite) TestSetPassword() {
	tid := uuid.New()
	admin := s.seedAdmin("admin@acme.test", "old-password-1", domain.RoleAdmin, &tid)
	superPrincipal := &authz.Principal{ID: uuid.New(), Role: domain.RoleSuperAdmin, Active: true}

	s.Require().NoError(s.service.SetPassword(s.ctx, superPrincipal, admin.ID, "new-password-2"))

	_, err := s.service.Authenticate(s.ctx, "admin@acme.test", "old-password-1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	_, err = s.service.Authenticate(s.ctx, "admin@acme.test", "new-password-2")
	s.NoError(err)
}
