// Package auth issues and validates bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the validity window of issued tokens.
const DefaultTokenTTL = time.Hour

var (
	// ErrInvalidToken is returned for malformed, tampered or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the token payload. The user identifier travels in the "id" claim.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// Issue returns a signed token for userID.
func (m *TokenManager) Issue(userID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates tokenString and returns the user id it carries.
func (m *TokenManager) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
