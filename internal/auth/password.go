package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords bcrypt cannot hash.
var ErrPasswordTooLong = apperr.Validation("password must not exceed 72 bytes")

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	// Cost is the bcrypt work factor.
	Cost int
}

// NewPasswordHasher returns a hasher using bcrypt.DefaultCost.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{Cost: bcrypt.DefaultCost}
}

// Hash returns the bcrypt hash of password. The limit is in bytes, so a
// multibyte password can be rejected below 72 characters.
func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Check reports whether password matches hash.
// A mismatch is not an error; only malformed hashes are.
func (h *PasswordHasher) Check(hash []byte, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}
