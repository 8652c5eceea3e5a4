package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"ssoportal/internal/admin/models"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
)

// InMemory is a map-backed Store for tests and local development.
type InMemory struct {
	mu     sync.RWMutex
	admins map[domain.AdminID]*models.Admin

	// FailCreate forces the next Create to fail; used by onboarding tests to
	// exercise rollback.
	FailCreate error
}

func NewInMemory() *InMemory {
	return &InMemory{admins: make(map[domain.AdminID]*models.Admin)}
}

func (s *InMemory) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		err := s.FailCreate
		s.FailCreate = nil
		return err
	}
	for _, existing := range s.admins {
		if strings.EqualFold(existing.Email, admin.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.admins[admin.ID] = cloneAdmin(admin)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.AdminID) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.admins[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.admins {
		if strings.EqualFold(a.Email, email) {
			return cloneAdmin(a), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, tenantID *domain.TenantID) ([]*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Admin{}
	for _, a := range s.admins {
		if tenantID != nil && (a.TenantID == nil || *a.TenantID != *tenantID) {
			continue
		}
		out = append(out, cloneAdmin(a))
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[admin.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.admins[admin.ID] = cloneAdmin(admin)
	return nil
}

func (s *InMemory) TouchLastLogin(_ context.Context, id domain.AdminID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.admins[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	a.LastLogin = &t
	return nil
}

func cloneAdmin(a *models.Admin) *models.Admin {
	cp := *a
	if a.TenantID != nil {
		tid := *a.TenantID
		cp.TenantID = &tid
	}
	if a.LastLogin != nil {
		ll := *a.LastLogin
		cp.LastLogin = &ll
	}
	return &cp
}
