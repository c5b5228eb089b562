// Package auth issues and verifies bearer credentials and resolves them from
// incoming requests.
package auth

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Tomlord1122/task-backend/internal/domain"
)

// TokenTTL is the fixed validity window of an issued credential.
const TokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for every verification failure: malformed,
// expired, wrong algorithm or bad signature are not distinguished.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity payload carried by a credential.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Owner returns the user id as a UUID.
func (c *Claims) Owner() uuid.UUID {
	id, _ := uuid.FromString(c.UserID)
	return id
}

// Verifier resolves a raw token to its claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// TokenCodec signs and verifies HS256 JWTs with a shared secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec returns a codec with the standard 7 day validity.
func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: TokenTTL, now: time.Now}
}

// Issue signs a credential for user and returns it with its expiry.
func (c *TokenCodec) Issue(user domain.User) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.ttl)
	claims := Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.FromString(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
