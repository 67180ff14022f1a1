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

package rbac

import "fmt"

// Role is the closed set of session roles. Every branch on a role must
// switch over these constants exhaustively; RoleUnknown always falls
// through to the deny path.
type Role string

const (
	// RoleSuperAdmin operates across tenants on the global surface.
	// It never carries tenant claims for authorization purposes.
	RoleSuperAdmin Role = "super_admin"

	// RoleTenantAdmin administers a single tenant workspace.
	RoleTenantAdmin Role = "tenant_admin"

	// RoleTeacher works inside a tenant workspace and additionally sees
	// the grading/reward panel.
	RoleTeacher Role = "teacher"

	// RoleUnknown is any role string outside the closed set.
	RoleUnknown Role = ""
)

// ParseRole maps a wire role string onto the closed set. Anything
// unrecognized maps to RoleUnknown so callers fail closed.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleTenantAdmin:
		return RoleTenantAdmin
	case RoleTeacher:
		return RoleTeacher
	default:
		return RoleUnknown
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleTeacher:
		return true
	case RoleUnknown:
		return false
	}
	return false
}

// RequiresTenant reports whether sessions with this role must carry both
// tenant claims. Super admins act across tenants and carry none.
func (r Role) RequiresTenant() bool {
	switch r {
	case RoleTenantAdmin, RoleTeacher:
		return true
	case RoleSuperAdmin, RoleUnknown:
		return false
	}
	return false
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown role")
	}
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown strings decode
// to RoleUnknown rather than erroring so a tampered or future role field
// degrades to the deny path instead of breaking token parsing.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}
