package models

import (
	"strings"
	"time"

	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/password"
)

// Status of an end-user account. Only active users authenticate.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// User is an end user scoped to exactly one tenant, used as the OAuth
// subject in accepted login challenges.
//
// Invariants:
//   - (Username, TenantID) and (Email, TenantID) pairs are unique
//   - TenantID is required and immutable after construction
type User struct {
	ID        domain.UserID   `json:"id"`
	TenantID  domain.TenantID `json:"tenant_id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Hash      string          `json:"-"`
	Profile   map[string]any  `json:"profile"`
	Status    Status          `json:"status"`
	LastLogin *time.Time      `json:"last_login,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewUser validates and constructs an active user.
func NewUser(userID domain.UserID, tenantID domain.TenantID, username, email, plainPassword string, profile map[string]any, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a valid email is required")
	}
	if tenantID == (domain.TenantID{}) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant is required")
	}
	if profile == nil {
		profile = map[string]any{}
	}

	user := &User{
		ID:        userID,
		TenantID:  tenantID,
		Username:  username,
		Email:     email,
		Profile:   profile,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.SetPassword(plainPassword); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPassword replaces the stored bcrypt hash.
func (u *User) SetPassword(plain string) error {
	hash, err := password.HashBcrypt(plain)
	if err != nil {
		return err
	}
	u.Hash = hash
	return nil
}

// ValidatePassword verifies a password attempt.
func (u *User) ValidatePassword(plain string) bool {
	return password.VerifyBcrypt(plain, u.Hash)
}

// DisplayName prefers the profile name over the username for token claims.
func (u *User) DisplayName() string {
	if name, ok := u.Profile["name"].(string); ok && name != "" {
		return name
	}
	return u.Username
}

func (u *User) IsActive() bool { return u.Status == StatusActive }
