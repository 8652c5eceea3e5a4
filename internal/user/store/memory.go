package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ssoportal/internal/user/models"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
)

// InMemory is a map-backed Store for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	users map[domain.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[domain.UserID]*models.User)}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.TenantID != user.TenantID {
			continue
		}
		if strings.EqualFold(existing.Username, user.Username) ||
			strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *InMemory) FindByUsername(_ context.Context, tenantID domain.TenantID, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, tenantID *domain.TenantID, limit, offset int) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := []*models.User{}
	for _, u := range s.users {
		if tenantID != nil && u.TenantID != *tenantID {
			continue
		}
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*models.User{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemory) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range s.users {
		if id == user.ID || existing.TenantID != user.TenantID {
			continue
		}
		if strings.EqualFold(existing.Username, user.Username) ||
			strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemory) TouchLastLogin(_ context.Context, id domain.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	if u.LastLogin != nil {
		ll := *u.LastLogin
		cp.LastLogin = &ll
	}
	if u.Profile != nil {
		p := make(map[string]any, len(u.Profile))
		for k, v := range u.Profile {
			p[k] = v
		}
		cp.Profile = p
	}
	return &cp
}
