package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

func tenantPtr(id domain.TenantID) *domain.TenantID { return &id }

func superAdmin() *Principal {
	return &Principal{ID: uuid.New(), Email: "root@example.com", Role: domain.RoleSuperAdmin, Active: true}
}

func tenantAdmin(tenantID domain.TenantID) *Principal {
	return &Principal{ID: uuid.New(), Email: "admin@acme.com", TenantID: &tenantID, Role: domain.RoleAdmin, Active: true}
}

func TestAuthorize(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("nil principal is unauthenticated", func(t *testing.T) {
		err := Authorize(nil, nil, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("inactive principal is unauthenticated", func(t *testing.T) {
		p := tenantAdmin(tenantA)
		p.Active = false
		err := Authorize(p, nil, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("role outside required set is forbidden", func(t *testing.T) {
		p := tenantAdmin(tenantA)
		p.Role = domain.RoleViewer
		err := Authorize(p, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("empty required set gates only authentication", func(t *testing.T) {
		p := tenantAdmin(tenantA)
		p.Role = domain.RoleViewer
		assert.NoError(t, Authorize(p, nil, nil))
	})

	t.Run("cross-tenant resource is forbidden", func(t *testing.T) {
		err := Authorize(tenantAdmin(tenantA), []domain.Role{domain.RoleAdmin}, tenantPtr(tenantB))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("own-tenant resource is allowed", func(t *testing.T) {
		assert.NoError(t, Authorize(tenantAdmin(tenantA), []domain.Role{domain.RoleAdmin}, tenantPtr(tenantA)))
	})

	t.Run("super-admin bypasses tenant scoping", func(t *testing.T) {
		assert.NoError(t, Authorize(superAdmin(), []domain.Role{domain.RoleSuperAdmin}, tenantPtr(tenantB)))
	})
}

func TestScopeTenant(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("non-super-admin writes are pinned to own tenant", func(t *testing.T) {
		got, err := ScopeTenant(tenantAdmin(tenantA), tenantPtr(tenantB))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tenantA, *got)
	})

	t.Run("missing tenant on write is filled with own tenant", func(t *testing.T) {
		got, err := ScopeTenant(tenantAdmin(tenantA), nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tenantA, *got)
	})

	t.Run("super-admin may assign any tenant", func(t *testing.T) {
		got, err := ScopeTenant(superAdmin(), tenantPtr(tenantB))
		require.NoError(t, err)
		assert.Equal(t, tenantB, *got)
	})

	t.Run("super-admin may assign no tenant", func(t *testing.T) {
		got, err := ScopeTenant(superAdmin(), nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("scoped role without tenant is forbidden", func(t *testing.T) {
		p := &Principal{ID: uuid.New(), Role: domain.RoleAdmin, Active: true}
		_, err := ScopeTenant(p, tenantPtr(tenantB))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestScopeFilter(t *testing.T) {
	tenantA := uuid.New()

	t.Run("super-admin sees everything", func(t *testing.T) {
		assert.Nil(t, ScopeFilter(superAdmin()))
	})

	t.Run("tenant admin is filtered to own tenant", func(t *testing.T) {
		got := ScopeFilter(tenantAdmin(tenantA))
		require.NotNil(t, got)
		assert.Equal(t, tenantA, *got)
	})
}
