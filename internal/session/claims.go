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
	"errors"

	"github.com/classdeck/classdeck/internal/rbac"
)

// Domain errors
var (
	ErrTokenInvalid     = errors.New("session token invalid")
	ErrTokenExpired     = errors.New("session token expired")
	ErrIncompleteClaims = errors.New("tenant claims required for tenant-scoped role")
)

// Claims are the identity, role, and tenant facts bound into the signed
// session token. They are created whole at credential exchange, mutated only
// by re-issuance, and destroyed at logout.
//
// Invariant: a super_admin session ignores tenant fields for authorization;
// tenant_admin and teacher sessions must carry both TenantID and
// TenantSubdomain.
type Claims struct {
	UserID          string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            rbac.Role `json:"role"`
	TenantID        string    `json:"tenantId,omitempty"`
	TenantSubdomain string    `json:"tenantSubdomain,omitempty"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
}

// Validate checks the role/tenant relationship invariant.
func (c *Claims) Validate() error {
	if !c.Role.Valid() {
		return ErrTokenInvalid
	}
	if c.Role.RequiresTenant() && (c.TenantID == "" || c.TenantSubdomain == "") {
		return ErrIncompleteClaims
	}
	return nil
}

// Scoped reports whether outbound calls for this session must carry tenant
// scoping headers. Super admin calls are intentionally unscoped.
func (c *Claims) Scoped() bool {
	return c.Role != rbac.RoleSuperAdmin
}
