// Package service orchestrates tenant-admin lifecycle and authentication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ssoportal/internal/admin/models"
	"ssoportal/internal/admin/store"
	"ssoportal/internal/authz"
	"ssoportal/internal/platform/metrics"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/platform/sentinel"
	"ssoportal/pkg/requestcontext"
)

// Service manages back-office principals and their credentials.
type Service struct {
	admins   store.Store
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. secret signs admin credentials; tokenTTL bounds
// their lifetime (7 days in the default configuration).
func New(admins store.Store, secret []byte, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		admins:   admins,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult carries the sanitized admin and the signed credential.
type LoginResult struct {
	Admin *models.Admin `json:"admin"`
	Token string        `json:"token"`
}

// Authenticate verifies email+password and issues a signed credential. It
// returns Unauthenticated for unknown email, inactive account, and wrong
// password alike so callers cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	if email == "" || plainPassword == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email and password are required")
	}

	invalid := dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countLogin("failure")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "authentication failed")
	}
	if !admin.Active || !admin.ValidatePassword(plainPassword) {
		s.countLogin("failure")
		return nil, invalid
	}

	now := requestcontext.Now(ctx)
	if err := s.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		// Authentication already succeeded; a lost lastLogin update is not
		// worth failing the login over.
		s.logger.WarnContext(ctx, "failed to update last_login",
			"admin_id", admin.ID,
			"error", err,
		)
	} else {
		admin.LastLogin = &now
	}

	token, err := s.issueToken(admin.ID, admin.Email, admin.TenantID, admin.Role, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue credential")
	}

	s.countLogin("success")
	s.logger.InfoContext(ctx, "admin authenticated",
		"admin_id", admin.ID,
		"role", admin.Role,
	)
	return &LoginResult{Admin: admin, Token: token}, nil
}

// LoadPrincipal validates a bearer token and re-reads the admin row so that
// deactivated admins are rejected before their token expires. Implements
// middleware.PrincipalLoader.
func (s *Service) LoadPrincipal(ctx context.Context, token string) (*authz.Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	adminID := uuid.MustParse(claims.Subject)

	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "unknown principal")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load principal")
	}
	if !admin.Active {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "principal deactivated")
	}

	return &authz.Principal{
		ID:       admin.ID,
		Email:    admin.Email,
		TenantID: admin.TenantID,
		Role:     admin.Role,
		Active:   admin.Active,
	}, nil
}

// CreateRequest is the input for admin creation.
type CreateRequest struct {
	Email    string           `json:"email"`
	Name     string           `json:"name"`
	Password string           `json:"password"`
	TenantID *domain.TenantID `json:"tenant_id,omitempty"`
	Role     domain.Role      `json:"role,omitempty"`
}

// Create adds a new admin on behalf of principal. Super-admins may create
// admins for any tenant and role; tenant admins may only create role=admin
// principals inside their own tenant (the gate normalizes the tenant and the
// role is forced here).
func (s *Service) Create(ctx context.Context, principal *authz.Principal, req CreateRequest) (*models.Admin, error) {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, nil); err != nil {
		return nil, err
	}

	tenantID, err := authz.ScopeTenant(principal, req.TenantID)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if !principal.IsSuperAdmin() {
		// Tenant admins can only mint other tenant admins.
		role = domain.RoleAdmin
	}

	now := requestcontext.Now(ctx)
	admin, err := models.NewAdmin(uuid.New(), tenantID, req.Email, req.Name, req.Password, role, now)
	if err != nil {
		return nil, err
	}

	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin")
	}

	s.logger.InfoContext(ctx, "admin created",
		"admin_id", admin.ID,
		"role", admin.Role,
		"created_by", principal.ID,
	)
	return admin, nil
}

// Get returns an admin visible to the principal.
func (s *Service) Get(ctx context.Context, principal *authz.Principal, adminID domain.AdminID) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "admin not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin")
	}
	if err := authz.Authorize(principal, nil, admin.TenantID); err != nil {
		return nil, err
	}
	return admin, nil
}

// SetPassword replaces an admin's credential.
func (s *Service) SetPassword(ctx context.Context, principal *authz.Principal, adminID domain.AdminID, plain string) error {
	admin, err := s.Get(ctx, principal, adminID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, admin.TenantID); err != nil {
		return err
	}
	if err := admin.SetPassword(plain); err != nil {
		return err
	}
	admin.UpdatedAt = requestcontext.Now(ctx)
	if err := s.admins.Update(ctx, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update admin")
	}
	return nil
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.AdminLogins.WithLabelValues(outcome).Inc()
	}
}
