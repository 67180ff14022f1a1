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

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdeck/classdeck/internal/rbac"
	"github.com/classdeck/classdeck/internal/session"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}), srv
}

func scopedClaims() *session.Claims {
	return &session.Claims{
		UserID:          "u-1",
		Email:           "admin@escola1.example",
		Name:            "Admin",
		Role:            rbac.RoleTenantAdmin,
		TenantID:        "t-1",
		TenantSubdomain: "escola1",
		AccessToken:     "access-token",
	}
}

// TestPurpose: Validates the credential exchange happy path and failure mapping.
// Scope: Unit Test
// Security: Backend rejections must map to typed errors, not generic ones, so the
// login surface can answer precisely without leaking backend detail.
// Expected: 200 decodes the identity and tokens; 401/403 map to ErrInvalidCredentials;
// 423 maps to ErrAccountLocked.
// Test Case ID: UPS-01
func TestClient_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/admin/auth/login", r.URL.Path)

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "admin@escola1.example", req["email"])

			json.NewEncoder(w).Encode(LoginResult{
				User: LoginUser{
					ID:              "u-1",
					Email:           "admin@escola1.example",
					Role:            "tenant_admin",
					TenantID:        "t-1",
					TenantSubdomain: "escola1",
				},
				AccessToken:  "at",
				RefreshToken: "rt",
			})
		})
		defer srv.Close()

		result, err := c.Login(context.Background(), "admin@escola1.example", "pw")
		require.NoError(t, err)
		assert.Equal(t, "u-1", result.User.ID)
		assert.Equal(t, "at", result.AccessToken)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		defer srv.Close()

		_, err := c.Login(context.Background(), "x@y.z", "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("locked account", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusLocked)
		})
		defer srv.Close()

		_, err := c.Login(context.Background(), "x@y.z", "pw")
		assert.ErrorIs(t, err, ErrAccountLocked)
	})
}

// TestPurpose: Validates the tenant scoping invariant on outbound calls.
// Scope: Unit Test
// Security: Tenant isolation (scoped sessions always stamp both headers; super admin
// sessions stamp neither).
// Expected: A tenant admin request carries X-Tenant-ID and X-Tenant-Subdomain plus the
// bearer token; a super admin request carries only the bearer token.
// Test Case ID: UPS-02
func TestClient_Do_TenantScoping(t *testing.T) {
	var got http.Header
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	resp, err := c.Do(context.Background(), scopedClaims(), http.MethodGet, "/admin/students", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer access-token", got.Get("Authorization"))
	assert.Equal(t, "t-1", got.Get(HeaderTenantID))
	assert.Equal(t, "escola1", got.Get(HeaderTenantSubdomain))

	super := &session.Claims{
		UserID:      "u-root",
		Role:        rbac.RoleSuperAdmin,
		AccessToken: "root-token",
		// Stray tenant fields on a super admin session are ignored.
		TenantID:        "t-9",
		TenantSubdomain: "escola9",
	}
	resp, err = c.Do(context.Background(), super, http.MethodGet, "/admin/tenants", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer root-token", got.Get("Authorization"))
	assert.Empty(t, got.Get(HeaderTenantID))
	assert.Empty(t, got.Get(HeaderTenantSubdomain))
}

// TestPurpose: Validates tenant record lookup and its not-found mapping.
// Scope: Unit Test
// Expected: 200 unwraps the data envelope; 404 maps to ErrTenantNotFound.
// Test Case ID: UPS-03
func TestClient_GetTenant(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tenants/public/escola1":
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"id":        "t-1",
					"name":      "Escola Um",
					"subdomain": "escola1",
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer srv.Close()

	got, err := c.GetTenant(context.Background(), "escola1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ID)

	_, err = c.GetTenant(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

// TestPurpose: Validates the onboarding completion call shape.
// Scope: Unit Test
// Expected: PATCH with the completion flag, stamped with bearer and tenant scope.
// Test Case ID: UPS-04
func TestClient_CompleteOnboarding(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/admin/tenants/onboarding", r.URL.Path)
		assert.Equal(t, "t-1", r.Header.Get(HeaderTenantID))

		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["onboardingCompleted"])
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	assert.NoError(t, c.CompleteOnboarding(context.Background(), scopedClaims()))
}

// TestPurpose: Validates upstream error payload decoding.
// Scope: Unit Test
// Expected: A 5xx with a message body surfaces as an APIError carrying both.
// Test Case ID: UPS-05
func TestClient_APIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "database on fire"})
	})
	defer srv.Close()

	err := c.InvalidateSession(context.Background(), "tok")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "database on fire", apiErr.Message)
}
