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

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates that an issued token verifies back to the same subject.
// Scope: Unit Test
// Security: Session integrity
// Expected: Subject id and role survive the round trip.
// Test Case ID: SES-01
func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := NewIssuer(testSecret, "giftswap", time.Hour)
	require.NoError(t, err)

	tok, err := iss.Issue("user-1", authz.RoleAdmin, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := iss.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, authz.Subject{UserID: "user-1", Role: authz.RoleAdmin}, claims.Subject())
}

// TestPurpose: Validates rejection of expired, tampered and foreign tokens.
// Scope: Unit Test
// Security: Token forgery and replay (CWE-347)
// Expected: Expired maps to ErrSessionExpired, the rest to ErrSessionInvalid.
// Test Case ID: SES-02
func TestIssuer_Rejects(t *testing.T) {
	iss, err := NewIssuer(testSecret, "giftswap", time.Minute)
	require.NoError(t, err)
	tok, err := iss.Issue("user-1", authz.RoleUser, "")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *iss
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := later.Verify(tok.AccessToken)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(tok.AccessToken, ".")
		require.Len(t, parts, 3)
		_, err := iss.Verify(parts[0] + "." + parts[1] + ".AAAA")
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewIssuer("fedcba9876543210fedcba9876543210", "giftswap", time.Minute)
		require.NoError(t, err)
		_, err = other.Verify(tok.AccessToken)
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := Claims{Role: authz.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "giftswap",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = iss.Verify(raw)
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})
}

// TestPurpose: Validates that short secrets are refused.
// Scope: Unit Test
// Security: Weak HMAC keys (CWE-326)
// Expected: NewIssuer fails below 32 bytes.
// Test Case ID: SES-03
func TestNewIssuer_ShortSecret(t *testing.T) {
	_, err := NewIssuer("short", "giftswap", time.Hour)
	assert.Error(t, err)
}
