//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	tenantmodels "ssoportal/internal/tenant/models"
	tenantstore "ssoportal/internal/tenant/store"
	"ssoportal/internal/user/models"
	"ssoportal/internal/user/store"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
	"ssoportal/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *store.Postgres
	tenants   *tenantstore.Postgres
	ctx       context.Context
	tenantA   domain.TenantID
	tenantB   domain.TenantID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.container = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.container.DB)
	s.tenants = tenantstore.NewPostgres(s.container.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateTables(s.ctx, "tenants", "users"))
	s.tenantA = s.seedTenant("Tenant A")
	s.tenantB = s.seedTenant("Tenant B")
}

func (s *PostgresStoreSuite) seedTenant(name string) domain.TenantID {
	tenant, err := tenantmodels.NewTenant(uuid.New(), name, "", nil, nil, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.tenants.Create(s.ctx, tenant))
	return tenant.ID
}

func (s *PostgresStoreSuite) newUser(tenantID domain.TenantID, username, email string) *models.User {
	user, err := models.NewUser(uuid.New(), tenantID, username, email, "correct horse battery",
		map[string]any{"name": "Jane Doe"}, time.Now().UTC())
	s.Require().NoError(err)
	return user
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	user := s.newUser(s.tenantA, "jdoe", "jdoe@acme.test")
	s.Require().NoError(s.store.Create(s.ctx, user))

	byID, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("jdoe", byID.Username)
	s.Equal(s.tenantA, byID.TenantID)
	s.Equal("Jane Doe", byID.Profile["name"])
	s.True(byID.ValidatePassword("correct horse battery"))
	s.Nil(byID.LastLogin)

	byName, err := s.store.FindByUsername(s.ctx, s.tenantA, "JDOE")
	s.Require().NoError(err)
	s.Equal(user.ID, byName.ID)

	// Same username in another tenant is a different account.
	_, err = s.store.FindByUsername(s.ctx, s.tenantB, "jdoe")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPerTenantUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser(s.tenantA, "jdoe", "jdoe@acme.test")))

	s.Run("duplicate username within a tenant", func() {
		err := s.store.Create(s.ctx, s.newUser(s.tenantA, "jdoe", "other@acme.test"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("duplicate email within a tenant", func() {
		err := s.store.Create(s.ctx, s.newUser(s.tenantA, "other", "JDOE@acme.test"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("same username and email in another tenant", func() {
		s.NoError(s.store.Create(s.ctx, s.newUser(s.tenantB, "jdoe", "jdoe@acme.test")))
	})
}

func (s *PostgresStoreSuite) TestUpdate() {
	user := s.newUser(s.tenantA, "jdoe", "jdoe@acme.test")
	s.Require().NoError(s.store.Create(s.ctx, user))

	user.Email = "new@acme.test"
	user.Status = models.StatusSuspended
	user.Profile["department"] = "ops"
	user.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Update(s.ctx, user))

	got, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("new@acme.test", got.Email)
	s.Equal(models.StatusSuspended, got.Status)
	s.Equal("ops", got.Profile["department"])

	s.ErrorIs(s.store.Update(s.ctx, s.newUser(s.tenantA, "ghost", "ghost@acme.test")), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTouchLastLogin() {
	user := s.newUser(s.tenantA, "jdoe", "jdoe@acme.test")
	s.Require().NoError(s.store.Create(s.ctx, user))

	at := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.store.TouchLastLogin(s.ctx, user.ID, at))

	got, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.LastLogin)
	s.WithinDuration(at, *got.LastLogin, time.Second)

	s.ErrorIs(s.store.TouchLastLogin(s.ctx, uuid.New(), at), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFiltering() {
	for _, name := range []string{"a1", "a2", "a3"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newUser(s.tenantA, name, name+"@acme.test")))
	}
	s.Require().NoError(s.store.Create(s.ctx, s.newUser(s.tenantB, "b1", "b1@other.test")))

	scoped, err := s.store.List(s.ctx, &s.tenantA, 0, 0)
	s.Require().NoError(err)
	s.Len(scoped, 3)

	all, err := s.store.List(s.ctx, nil, 0, 0)
	s.Require().NoError(err)
	s.Len(all, 4)

	page, err := s.store.List(s.ctx, &s.tenantA, 2, 2)
	s.Require().NoError(err)
	s.Len(page, 1)
}
