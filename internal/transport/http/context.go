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

package http

import (
	"context"

	"github.com/classdeck/classdeck/internal/session"
	"github.com/classdeck/classdeck/internal/tenant"
)

type contextKey string

const (
	claimsKey    contextKey = "session_claims"
	subdomainKey contextKey = "subdomain"
	tenantKey    contextKey = "tenant"
)

// GetClaims retrieves the authenticated session claims from context.
func GetClaims(ctx context.Context) *session.Claims {
	if val, ok := ctx.Value(claimsKey).(*session.Claims); ok {
		return val
	}
	return nil
}

// GetSubdomain retrieves the hostname-resolved subdomain from context.
// Empty means the request targets the un-tenanted root surface.
func GetSubdomain(ctx context.Context) string {
	if val, ok := ctx.Value(subdomainKey).(string); ok {
		return val
	}
	return ""
}

// GetTenant retrieves the resolved tenant record from context.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if val, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return val
	}
	return nil
}
