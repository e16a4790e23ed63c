// Package session verifies the backend access token delivered on sign-in.
package session

import (
	"fmt"
	"time"

	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the backend's access token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session identifies the signed-in user.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Parse verifies an HS256 token signed with secret and returns the session
// it describes. Every failure wraps ErrInvalidToken; a token without a
// subject also wraps ErrNoUser.
func Parse(token, secret string) (Session, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, apperrors.ErrNoUser)
	}

	s := Session{UserID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	return s, nil
}

// Sign issues an HS256 token for userID. It exists for local tooling and
// tests; production tokens come from the backend.
func Sign(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  "authenticated",
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
