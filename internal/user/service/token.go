package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ssoportal/pkg/domain"
)

// Claims is the user credential payload. Subject carries the user ID.
type Claims struct {
	Username string `json:"username"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(userID domain.UserID, username, displayName string, tenantID domain.TenantID, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		TenantID: tenantID.String(),
		Name:     displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
