// Package auth provides credential primitives: session tokens, password
// hashing, and API key generation.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is how long an issued session token remains valid.
const SessionTTL = 7 * 24 * time.Hour

// Token verification errors.
var (
	// ErrTokenMalformed indicates the credential could not be parsed.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenExpired indicates the credential is past its expiry.
	ErrTokenExpired = errors.New("expired token")
	// ErrTokenInvalid indicates the signature does not match.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims carries the registered claims plus the subject user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenManager issues and verifies stateless HMAC-signed session tokens.
// Tokens are not stored server-side; validity is determined purely by
// signature and expiry.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given signing secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    SessionTTL,
		now:    time.Now,
	}
}

// Issue creates a signed session token for the given user ID.
func (m *TokenManager) Issue(userID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Verify validates a session token and returns the encoded user ID.
// It is read-only; callers own any follow-up persistence such as the
// last-login update.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", ErrTokenInvalid
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
