package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

// Claims is the signed credential payload carried by back-office tokens.
type Claims struct {
	Email    string      `json:"email"`
	TenantID string      `json:"tenant_id,omitempty"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// issueToken signs a time-boxed HS256 credential for the admin.
func (s *Service) issueToken(adminID domain.AdminID, email string, tenantID *domain.TenantID, role domain.Role, now time.Time) (string, error) {
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if tenantID != nil {
		claims.TenantID = tenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken validates the signature and expiry and returns the claims.
func (s *Service) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "invalid or expired token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token subject")
	}
	return claims, nil
}
