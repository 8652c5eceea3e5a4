// Package service orchestrates end-user lifecycle and authentication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ssoportal/internal/authz"
	"ssoportal/internal/platform/metrics"
	"ssoportal/internal/user/models"
	"ssoportal/internal/user/store"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/platform/sentinel"
	"ssoportal/pkg/requestcontext"
)

// Service manages end users. Users always belong to exactly one tenant and
// authenticate by username within that tenant.
type Service struct {
	users       store.Store
	secret      []byte
	tokenTTL    time.Duration
	rememberTTL time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. tokenTTL bounds ordinary sessions; rememberTTL
// applies when the user asks to be remembered.
func New(users store.Store, secret []byte, tokenTTL, rememberTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		users:       users,
		secret:      secret,
		tokenTTL:    tokenTTL,
		rememberTTL: rememberTTL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult carries the authenticated user and a signed session credential.
type LoginResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Authenticate verifies username+password within a tenant. Unknown username,
// non-active status, and wrong password all collapse into the same
// Unauthenticated error so callers cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, tenantID domain.TenantID, username, plainPassword string, remember bool) (*LoginResult, error) {
	if username == "" || plainPassword == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username and password are required")
	}

	invalid := dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")

	user, err := s.users.FindByUsername(ctx, tenantID, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countLogin("failure")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "authentication failed")
	}
	if !user.IsActive() || !user.ValidatePassword(plainPassword) {
		s.countLogin("failure")
		return nil, invalid
	}

	now := requestcontext.Now(ctx)
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last_login",
			"user_id", user.ID,
			"error", err,
		)
	} else {
		user.LastLogin = &now
	}

	ttl := s.tokenTTL
	if remember {
		ttl = s.rememberTTL
	}
	token, err := s.issueToken(user.ID, user.Username, user.DisplayName(), user.TenantID, now, ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue credential")
	}

	s.countLogin("success")
	s.logger.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"tenant_id", user.TenantID,
	)
	return &LoginResult{User: user, Token: token}, nil
}

// CreateRequest is the input for user creation.
type CreateRequest struct {
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Profile  map[string]any   `json:"profile,omitempty"`
	TenantID *domain.TenantID `json:"tenant_id,omitempty"`
}

// Create adds a user on behalf of principal. Tenant admins create users in
// their own tenant regardless of any tenant_id they send; super-admins must
// name one explicitly.
func (s *Service) Create(ctx context.Context, principal *authz.Principal, req CreateRequest) (*models.User, error) {
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, nil); err != nil {
		return nil, err
	}
	tenantID, err := authz.ScopeTenant(principal, req.TenantID)
	if err != nil {
		return nil, err
	}
	if tenantID == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant_id is required")
	}

	now := requestcontext.Now(ctx)
	user, err := models.NewUser(uuid.New(), *tenantID, req.Username, req.Email, req.Password, req.Profile, now)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user created",
		"user_id", user.ID,
		"tenant_id", user.TenantID,
		"created_by", principal.ID,
	)
	return user, nil
}

// Get returns a user visible to the principal.
func (s *Service) Get(ctx context.Context, principal *authz.Principal, userID domain.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := authz.Authorize(principal, nil, &user.TenantID); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns users the principal may see. Non-super-admins only ever see
// their own tenant, whatever filter they request.
func (s *Service) List(ctx context.Context, principal *authz.Principal, tenantID *domain.TenantID, limit, offset int) ([]*models.User, error) {
	if err := authz.Authorize(principal, nil, nil); err != nil {
		return nil, err
	}
	if scoped := authz.ScopeFilter(principal); scoped != nil {
		tenantID = scoped
	}
	users, err := s.users.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// UpdateRequest carries the mutable user fields. Nil pointers leave the
// current value untouched.
type UpdateRequest struct {
	Email   *string        `json:"email,omitempty"`
	Status  *models.Status `json:"status,omitempty"`
	Profile map[string]any `json:"profile,omitempty"`
}

// Update modifies a user's email, status, or profile.
func (s *Service) Update(ctx context.Context, principal *authz.Principal, userID domain.UserID, req UpdateRequest) (*models.User, error) {
	user, err := s.Get(ctx, principal, userID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, &user.TenantID); err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid status")
		}
		user.Status = *req.Status
	}
	if req.Profile != nil {
		user.Profile = req.Profile
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	return user, nil
}

// SetPassword replaces a user's credential.
func (s *Service) SetPassword(ctx context.Context, principal *authz.Principal, userID domain.UserID, plain string) error {
	user, err := s.Get(ctx, principal, userID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(principal, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}, &user.TenantID); err != nil {
		return err
	}
	if err := user.SetPassword(plain); err != nil {
		return err
	}
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	return nil
}

// Deactivate soft-deletes a user by flipping status to inactive.
func (s *Service) Deactivate(ctx context.Context, principal *authz.Principal, userID domain.UserID) error {
	status := models.StatusInactive
	_, err := s.Update(ctx, principal, userID, UpdateRequest{Status: &status})
	return err
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.UserLogins.WithLabelValues(outcome).Inc()
	}
}
