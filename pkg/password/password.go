// Package password implements the two credential schemes used by the portal:
// salted PBKDF2-SHA512 for tenant admins and bcrypt for end users. Both store
// formats are compatible with rows written by earlier deployments.
package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	dErrors "ssoportal/pkg/domain-errors"
)

// PBKDF2 parameters for admin credentials. Changing these invalidates every
// stored admin hash, so treat them as frozen.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLen     = 512
	saltBytes        = 16
)

// Salted is a salt + PBKDF2 hash pair, both hex-encoded.
type Salted struct {
	Salt string
	Hash string
}

// NewSalted derives a fresh salted PBKDF2 hash for the given password.
func NewSalted(password string) (Salted, error) {
	if password == "" {
		return Salted{}, dErrors.New(dErrors.CodeBadRequest, "password cannot be empty")
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return Salted{}, fmt.Errorf("could not generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	return Salted{Salt: saltHex, Hash: deriveHex(password, saltHex)}, nil
}

// Verify checks a password against a stored salt/hash pair in constant time.
func (s Salted) Verify(password string) bool {
	if s.Salt == "" || s.Hash == "" {
		return false
	}
	derived := deriveHex(password, s.Salt)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(s.Hash)) == 1
}

func deriveHex(password, saltHex string) string {
	key := pbkdf2.Key([]byte(password), []byte(saltHex), pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(key)
}

// HashBcrypt creates a bcrypt hash for an end-user password.
func HashBcrypt(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeBadRequest, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyBcrypt checks an end-user password against its stored bcrypt hash.
func VerifyBcrypt(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
