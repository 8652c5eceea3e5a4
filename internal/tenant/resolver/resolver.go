// Package resolver determines the acting tenant for an inbound request.
//
// Resolution priority, first match wins:
//  1. explicit tenant identifier (hint or authenticated admin's own tenant)
//  2. tenant_id tag in OAuth client metadata
//  3. request hostname against the tenant's registered domain
//
// "Tenant not found" is not fatal for unauthenticated browser flows (callers
// degrade to generic branding) but is a hard failure for tenant-scoped API
// operations.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"ssoportal/internal/platform/redis"
	"ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/store"
	"ssoportal/pkg/domain"
	"ssoportal/pkg/platform/sentinel"
)

// MetadataTenantKey is the tag injected into OAuth client metadata to
// partition the otherwise tenant-unaware external registry.
const MetadataTenantKey = "tenant_id"

// Hint carries whatever tenant signals the caller has.
type Hint struct {
	// TenantID is an explicit tenant identifier; highest priority.
	TenantID *domain.TenantID
	// ClientMetadata is the OAuth client metadata from the provider,
	// possibly carrying a tenant_id tag.
	ClientMetadata map[string]any
	// Hostname is the inbound request host (without port).
	Hostname string
	// BrandingOnly marks unauthenticated browser lookups; inactive tenants
	// may resolve for these when the policy allows it.
	BrandingOnly bool
}

// Resolver looks up tenants by the hint's priority order, serving repeat
// lookups from an optional Redis read-through cache.
type Resolver struct {
	tenants         store.Store
	cache           *redis.Client
	cacheTTL        time.Duration
	resolveInactive bool
	logger          *slog.Logger
}

type Option func(*Resolver)

// WithCache enables the read-through cache. A nil client leaves caching off.
func WithCache(cache *redis.Client, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithInactivePolicy lets BrandingOnly lookups resolve inactive tenants.
func WithInactivePolicy(resolveInactive bool) Option {
	return func(r *Resolver) { r.resolveInactive = resolveInactive }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func New(tenants store.Store, opts ...Option) *Resolver {
	r := &Resolver{tenants: tenants, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the acting tenant, or sentinel.ErrNotFound when no signal
// matches. Inactive tenants resolve only for BrandingOnly hints under the
// configured policy.
func (r *Resolver) Resolve(ctx context.Context, hint Hint) (*models.Tenant, error) {
	tenant, err := r.lookup(ctx, hint)
	if err != nil {
		return nil, err
	}
	if !tenant.Active {
		if hint.BrandingOnly && r.resolveInactive {
			return tenant, nil
		}
		return nil, sentinel.ErrNotFound
	}
	return tenant, nil
}

// TenantIDFromMetadata extracts the tenant tag from OAuth client metadata.
func TenantIDFromMetadata(metadata map[string]any) (domain.TenantID, bool) {
	raw, ok := metadata[MetadataTenantKey]
	if !ok {
		return domain.TenantID{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return domain.TenantID{}, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return domain.TenantID{}, false
	}
	return id, true
}

func (r *Resolver) lookup(ctx context.Context, hint Hint) (*models.Tenant, error) {
	if hint.TenantID != nil {
		return r.byID(ctx, *hint.TenantID)
	}
	if id, ok := TenantIDFromMetadata(hint.ClientMetadata); ok {
		return r.byID(ctx, id)
	}
	if host := normalizeHost(hint.Hostname); host != "" {
		return r.byDomain(ctx, host)
	}
	return nil, sentinel.ErrNotFound
}

func (r *Resolver) byID(ctx context.Context, id domain.TenantID) (*models.Tenant, error) {
	key := "tenant:id:" + id.String()
	if tenant, ok := r.cached(ctx, key); ok {
		return tenant, nil
	}
	tenant, err := r.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, tenant)
	return tenant, nil
}

func (r *Resolver) byDomain(ctx context.Context, host string) (*models.Tenant, error) {
	key := "tenant:domain:" + host
	if tenant, ok := r.cached(ctx, key); ok {
		return tenant, nil
	}
	tenant, err := r.tenants.FindByDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, tenant)
	return tenant, nil
}

func (r *Resolver) cached(ctx context.Context, key string) (*models.Tenant, bool) {
	if r.cache == nil {
		return nil, false
	}
	payload, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.logger.WarnContext(ctx, "tenant cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var tenant models.Tenant
	if err := json.Unmarshal(payload, &tenant); err != nil {
		return nil, false
	}
	return &tenant, true
}

func (r *Resolver) store(ctx context.Context, key string, tenant *models.Tenant) {
	if r.cache == nil {
		return
	}
	payload, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, payload, r.cacheTTL).Err(); err != nil {
		r.logger.WarnContext(ctx, "tenant cache write failed", "key", key, "error", err)
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
