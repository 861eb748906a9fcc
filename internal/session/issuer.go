// Copyright 2026 The Giftswap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session issues and verifies the bearer tokens that carry an
// authenticated subject between requests.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/id"
	"github.com/golang-jwt/jwt/v5"
)

// Domain errors
var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")
)

const minSecretLength = 32

// Claims is the token payload. Role is safe to embed because a user's role
// never changes after creation.
type Claims struct {
	Role  authz.Role `json:"role"`
	Email string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Subject returns the authorization subject named by the claims.
func (c *Claims) Subject() authz.Subject {
	return authz.Subject{UserID: c.RegisteredClaims.Subject, Role: c.Role}
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. The secret must be at least 32 bytes.
func NewIssuer(secret, issuer string, lifetime time.Duration) (*Issuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Issue signs a token for the user.
func (i *Issuer) Issue(userID string, role authz.Role, email string) (*Token, error) {
	now := i.now()
	expiresAt := now.Add(i.lifetime)
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.NewUUIDv7(),
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify parses and validates a token.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if claims.RegisteredClaims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}
