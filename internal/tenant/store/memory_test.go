package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ssoportal/internal/tenant/models"
	"ssoportal/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newTenant(name, domainName string) *models.Tenant {
	tenant, err := models.NewTenant(uuid.New(), name, domainName, nil, nil, time.Now())
	s.Require().NoError(err)
	return tenant
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	tenant := s.newTenant("Acme", "acme.test")
	s.Require().NoError(s.store.Create(s.ctx, tenant))

	byID, err := s.store.FindByID(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal("Acme", byID.Name)

	byDomain, err := s.store.FindByDomain(s.ctx, "ACME.TEST")
	s.Require().NoError(err)
	s.Equal(tenant.ID, byDomain.ID)

	_, err = s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDomainUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newTenant("A", "taken.test")))

	err := s.store.Create(s.ctx, s.newTenant("B", "taken.test"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	// Empty domains never collide.
	s.NoError(s.store.Create(s.ctx, s.newTenant("C", "")))
	s.NoError(s.store.Create(s.ctx, s.newTenant("D", "")))
}

func (s *MemoryStoreSuite) TestUpdate() {
	tenant := s.newTenant("Acme", "acme.test")
	s.Require().NoError(s.store.Create(s.ctx, tenant))

	tenant.Name = "Acme Corp"
	tenant.Branding.PrimaryColor = "#123456"
	s.Require().NoError(s.store.Update(s.ctx, tenant))

	got, err := s.store.FindByID(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal("Acme Corp", got.Name)
	s.Equal("#123456", got.Branding.PrimaryColor)

	s.ErrorIs(s.store.Update(s.ctx, s.newTenant("Ghost", "")), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestReturnsClones() {
	tenant := s.newTenant("Acme", "")
	s.Require().NoError(s.store.Create(s.ctx, tenant))

	got, err := s.store.FindByID(s.ctx, tenant.ID)
	s.Require().NoError(err)
	got.Name = "Mutated"
	got.Branding.PrimaryColor = "#000000"

	fresh, err := s.store.FindByID(s.ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal("Acme", fresh.Name)
	s.NotEqual("#000000", fresh.Branding.PrimaryColor)
}

func (s *MemoryStoreSuite) TestListPagination() {
	base := time.Now()
	for i, name := range []string{"A", "B", "C", "D"} {
		tenant, err := models.NewTenant(uuid.New(), name, "", nil, nil, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, tenant))
	}

	page, err := s.store.List(s.ctx, 2, 0)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	// Newest first.
	s.Equal("D", page[0].Name)

	rest, err := s.store.List(s.ctx, 10, 2)
	s.Require().NoError(err)
	s.Len(rest, 2)

	empty, err := s.store.List(s.ctx, 10, 100)
	s.Require().NoError(err)
	s.Empty(empty)
}
