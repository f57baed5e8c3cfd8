// Package auth validates the bearer tokens minted by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser   = "user"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks HS256 tokens carrying sub (user id) and role claims.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// ValidateToken returns the subject and role of a valid token.
func (v *Verifier) ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if !validRole(c.Role) {
		return uuid.Nil, "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return id, c.Role, nil
}

// IssueToken signs a token for userID. The platform only verifies tokens; this is used by
// local tooling and tests.
func (v *Verifier) IssueToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if !validRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := v.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
