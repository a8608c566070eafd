// Package opsock — auth.go
//
// Bearer-token authentication for operator commands: HS256 signing over
// jwt.RegisteredClaims with a shared HMAC secret, reduced to the
// shared-secret case since there is one operator console per agent, not a
// user database — Authenticator mints and validates tokens off the same
// configured secret rather than issuing access/refresh pairs against login
// credentials.
package opsock

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSecretLength enforces a minimum HMAC key length.
var ErrInvalidSecretLength = errors.New("opsock: jwt secret must be at least 32 characters")

// OperatorClaims identifies who minted a command token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// Authenticator signs and validates operator bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator builds an Authenticator over the configured HMAC secret.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// Mint issues a token identifying operator, valid for ttl.
func (a *Authenticator) Mint(operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "truckctl",
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Operator: operator,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses and verifies tokenString, rejecting anything not signed
// with this Authenticator's secret or past its expiry.
func (a *Authenticator) Validate(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("opsock: token rejected: %w", err)
	}
	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("opsock: invalid token")
	}
	return claims, nil
}
