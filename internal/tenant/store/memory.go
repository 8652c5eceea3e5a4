package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ssoportal/internal/tenant/models"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
)

// InMemory is a map-backed Store for tests and local development.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[domain.TenantID]*models.Tenant

	// FailCreate forces the next Create to fail; used by service tests to
	// exercise rollback paths.
	FailCreate error
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[domain.TenantID]*models.Tenant)}
}

func (s *InMemory) Create(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		err := s.FailCreate
		s.FailCreate = nil
		return err
	}
	if _, ok := s.tenants[tenant.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if tenant.Domain != "" && s.domainTaken(tenant.Domain, tenant.ID) {
		return sentinel.ErrAlreadyUsed
	}
	s.tenants[tenant.ID] = clone(tenant)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

func (s *InMemory) FindByDomain(_ context.Context, domainName string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domainName = strings.ToLower(domainName)
	for _, t := range s.tenants {
		if t.Domain != "" && t.Domain == domainName {
			return clone(t), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, limit, offset int) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		all = append(all, clone(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*models.Tenant{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemory) Update(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if tenant.Domain != "" && s.domainTaken(tenant.Domain, tenant.ID) {
		return sentinel.ErrAlreadyUsed
	}
	s.tenants[tenant.ID] = clone(tenant)
	return nil
}

// Delete removes a tenant outright. Only used by tests; the service soft
// deletes via Update.
func (s *InMemory) Delete(_ context.Context, id domain.TenantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, id)
}

func (s *InMemory) domainTaken(domainName string, except domain.TenantID) bool {
	for id, t := range s.tenants {
		if id != except && t.Domain != "" && strings.EqualFold(t.Domain, domainName) {
			return true
		}
	}
	return false
}

func clone(t *models.Tenant) *models.Tenant {
	cp := *t
	if t.Branding != nil {
		b := *t.Branding
		cp.Branding = &b
	}
	if t.Config != nil {
		cfg := make(map[string]any, len(t.Config))
		for k, v := range t.Config {
			cfg[k] = v
		}
		cp.Config = cfg
	}
	return &cp
}
