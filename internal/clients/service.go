// Package clients proxies the provider's OAuth client registry, partitioning
// it by tenant. The registry itself is tenant-unaware; a client managed
// through this service carries at most one tenant_id tag in its metadata
// (none for super-admin-owned clients), and every read and write is checked
// against that tag.
package clients

import (
	"context"
	"log/slog"

	"ssoportal/internal/authz"
	"ssoportal/internal/hydra"
	"ssoportal/internal/tenant/resolver"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

// Registry is the slice of the provider client the proxy needs.
type Registry interface {
	CreateClient(ctx context.Context, client *hydra.OAuthClient) (*hydra.OAuthClient, error)
	GetClient(ctx context.Context, id string) (*hydra.OAuthClient, error)
	UpdateClient(ctx context.Context, id string, client *hydra.OAuthClient) (*hydra.OAuthClient, error)
	DeleteClient(ctx context.Context, id string) error
	ListClients(ctx context.Context, limit, offset int) ([]*hydra.OAuthClient, error)
	RegenerateClientSecret(ctx context.Context, id string) (*hydra.OAuthClient, error)
}

// Service is the tenant-scoped registry proxy.
type Service struct {
	registry Registry
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(registry Registry, opts ...Option) *Service {
	s := &Service{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var managerRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}

// Create registers a client with the provider, tagging it with the acting
// tenant. Whatever tenant_id the caller put in the metadata is replaced by
// the gate's normalization; super-admins may tag any tenant explicitly, or
// none at all for an untagged, super-admin-only client.
func (s *Service) Create(ctx context.Context, principal *authz.Principal, client *hydra.OAuthClient, tenantID *domain.TenantID) (*hydra.OAuthClient, error) {
	if err := authz.Authorize(principal, managerRoles, nil); err != nil {
		return nil, err
	}
	scoped, err := authz.ScopeTenant(principal, tenantID)
	if err != nil {
		return nil, err
	}
	if scoped != nil {
		tagTenant(client, *scoped)
	} else {
		untagTenant(client)
	}
	created, err := s.registry.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "oauth client registered",
		"client_id", created.ClientID,
		"tenant_id", scoped,
	)
	return created, nil
}

// Get returns a client the principal's tenant owns.
func (s *Service) Get(ctx context.Context, principal *authz.Principal, clientID string) (*hydra.OAuthClient, error) {
	if err := authz.Authorize(principal, nil, nil); err != nil {
		return nil, err
	}
	return s.owned(ctx, principal, clientID)
}

// Update replaces a client's registration. The existing tenant tag is
// re-asserted so an update can never move a client between tenants, and an
// untagged client stays untagged.
func (s *Service) Update(ctx context.Context, principal *authz.Principal, clientID string, client *hydra.OAuthClient) (*hydra.OAuthClient, error) {
	if err := authz.Authorize(principal, managerRoles, nil); err != nil {
		return nil, err
	}
	existing, err := s.owned(ctx, principal, clientID)
	if err != nil {
		return nil, err
	}

	if owner, ok := resolver.TenantIDFromMetadata(existing.Metadata); ok {
		tagTenant(client, owner)
	} else {
		untagTenant(client)
	}
	return s.registry.UpdateClient(ctx, clientID, client)
}

// Delete removes a client the principal's tenant owns.
func (s *Service) Delete(ctx context.Context, principal *authz.Principal, clientID string) error {
	if err := authz.Authorize(principal, managerRoles, nil); err != nil {
		return err
	}
	if _, err := s.owned(ctx, principal, clientID); err != nil {
		return err
	}
	if err := s.registry.DeleteClient(ctx, clientID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "oauth client deleted", "client_id", clientID)
	return nil
}

// List returns clients visible to the principal. Non-super-admins only see
// clients tagged with their own tenant; untagged clients are super-admin-only.
func (s *Service) List(ctx context.Context, principal *authz.Principal, limit, offset int) ([]*hydra.OAuthClient, error) {
	if err := authz.Authorize(principal, nil, nil); err != nil {
		return nil, err
	}
	all, err := s.registry.ListClients(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	filter := authz.ScopeFilter(principal)
	if filter == nil {
		return all, nil
	}
	visible := []*hydra.OAuthClient{}
	for _, client := range all {
		if owner, ok := resolver.TenantIDFromMetadata(client.Metadata); ok && owner == *filter {
			visible = append(visible, client)
		}
	}
	return visible, nil
}

// RegenerateSecret rotates a client's secret. The new secret appears only in
// this response.
func (s *Service) RegenerateSecret(ctx context.Context, principal *authz.Principal, clientID string) (*hydra.OAuthClient, error) {
	if err := authz.Authorize(principal, managerRoles, nil); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, principal, clientID); err != nil {
		return nil, err
	}
	return s.registry.RegenerateClientSecret(ctx, clientID)
}

// owned fetches a client and verifies the principal may act on it. A client
// belonging to another tenant reads as NotFound rather than Forbidden so the
// registry's contents are not enumerable across tenants.
func (s *Service) owned(ctx context.Context, principal *authz.Principal, clientID string) (*hydra.OAuthClient, error) {
	client, err := s.registry.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if principal.IsSuperAdmin() {
		return client, nil
	}
	owner, ok := resolver.TenantIDFromMetadata(client.Metadata)
	if !ok || principal.TenantID == nil || owner != *principal.TenantID {
		return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
	}
	return client, nil
}

func tagTenant(client *hydra.OAuthClient, tenantID domain.TenantID) {
	if client.Metadata == nil {
		client.Metadata = map[string]any{}
	}
	client.Metadata[resolver.MetadataTenantKey] = tenantID.String()
}

func untagTenant(client *hydra.OAuthClient) {
	if client.Metadata != nil {
		delete(client.Metadata, resolver.MetadataTenantKey)
	}
}
