package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrNoCodeConfigured = errors.New("an access code or access code hash must be configured")

// CodeVerifier checks a submitted access code against the configured one.
type CodeVerifier interface {
	Verify(code string) bool
}

type plainCode struct {
	code []byte
}

func (p plainCode) Verify(code string) bool {
	return subtle.ConstantTimeCompare([]byte(code), p.code) == 1
}

type hashedCode struct {
	hash []byte
}

func (h hashedCode) Verify(code string) bool {
	return bcrypt.CompareHashAndPassword(h.hash, []byte(code)) == nil
}

// NewCodeVerifier prefers a bcrypt hash over a plaintext code when both are
// given.
func NewCodeVerifier(code, hash string) (CodeVerifier, error) {
	hash = strings.TrimSpace(hash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, err
		}
		return hashedCode{hash: []byte(hash)}, nil
	}
	if code == "" {
		return nil, ErrNoCodeConfigured
	}
	return plainCode{code: []byte(code)}, nil
}

// HashCode produces a value suitable for AUTH_CODE_HASH.
func HashCode(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
