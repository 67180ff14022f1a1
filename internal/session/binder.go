// Copyright 2026 The Classdeck Authors
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
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/classdeck/classdeck/internal/rbac"
)

// hkdfInfo domain-separates the signing key from other uses of the secret.
const hkdfInfo = "classdeck session token"

// Binder turns claims into signed session tokens and back. Tokens carry a
// fixed max age with a sliding re-issue window: a token presented within the
// final UpdateAge of its validity is reissued with a fresh expiry, otherwise
// it runs out and the user must authenticate again.
type Binder struct {
	signingKey []byte
	maxAge     time.Duration
	updateAge  time.Duration
	now        func() time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	TenantID        string `json:"tenantId,omitempty"`
	TenantSubdomain string `json:"tenantSubdomain,omitempty"`
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
}

// NewBinder creates a binder whose HS256 signing key is derived from the
// configured secret via HKDF-SHA256.
func NewBinder(secret string, maxAge, updateAge time.Duration) (*Binder, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if updateAge > maxAge {
		return nil, fmt.Errorf("update age %s exceeds max age %s", updateAge, maxAge)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &Binder{
		signingKey: key,
		maxAge:     maxAge,
		updateAge:  updateAge,
		now:        time.Now,
	}, nil
}

// Issue signs the claims into a session token with a fresh expiry. No
// partial session is ever produced: invalid claims return an error and no
// token.
func (b *Binder) Issue(claims *Claims) (string, error) {
	if err := claims.Validate(); err != nil {
		return "", err
	}

	now := b.now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.maxAge)),
		},
		Email:           claims.Email,
		Name:            claims.Name,
		Role:            string(claims.Role),
		TenantID:        claims.TenantID,
		TenantSubdomain: claims.TenantSubdomain,
		AccessToken:     claims.AccessToken,
		RefreshToken:    claims.RefreshToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, enforcing signature and
// expiry on every request. The current claims and the token's expiry come
// back on success.
func (b *Binder) Verify(token string) (*Claims, time.Time, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc,
		func(t *jwt.Token) (any, error) { return b.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, time.Time{}, ErrTokenExpired
		}
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, time.Time{}, ErrTokenInvalid
	}

	claims := &Claims{
		UserID:          tc.Subject,
		Email:           tc.Email,
		Name:            tc.Name,
		Role:            rbac.ParseRole(tc.Role),
		TenantID:        tc.TenantID,
		TenantSubdomain: tc.TenantSubdomain,
		AccessToken:     tc.AccessToken,
		RefreshToken:    tc.RefreshToken,
	}
	if err := claims.Validate(); err != nil {
		return nil, time.Time{}, err
	}
	return claims, tc.ExpiresAt.Time, nil
}

// ShouldReissue reports whether a token with the given expiry sits inside
// the sliding re-issue window.
func (b *Binder) ShouldReissue(expiresAt time.Time) bool {
	return b.now().Add(b.updateAge).After(expiresAt)
}

// MaxAge returns the fixed session lifetime.
func (b *Binder) MaxAge() time.Duration {
	return b.maxAge
}
