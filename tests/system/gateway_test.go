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

// Package system holds wire-level tests that run the full gateway stack
// against a fake admin API: real router, real middleware chain, real
// session tokens, real proxying over TCP.
//
// Test Categories:
//   - SYS-*: full-stack gateway flows
//   - AUD-*: postgres audit sink (INTEGRATION_TEST=true, needs postgres)
package system

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/config"
	"github.com/classdeck/classdeck/internal/session"
	"github.com/classdeck/classdeck/internal/tenancy"
	"github.com/classdeck/classdeck/internal/tenantcache"
	transportHTTP "github.com/classdeck/classdeck/internal/transport/http"
	"github.com/classdeck/classdeck/internal/upstream"
)

// startGateway wires the full stack over a fake admin API and serves it on
// a real listener.
func startGateway(t *testing.T) (gateway *httptest.Server, adminAPI *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(upstream.LoginResult{
			User: upstream.LoginUser{
				ID: "u-a1", Email: req.Email, Name: "Admin",
				Role: "tenant_admin", TenantID: "t-1", TenantSubdomain: "escola1",
			},
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		})
	})
	mux.HandleFunc("POST /admin/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/tenants/public/escola1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "t-1", "name": "Escola Um", "subdomain": "escola1",
			"metadata": map[string]any{"onboardingCompleted": true},
		}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"upstreamPath": r.URL.Path,
			"tenantId":     r.Header.Get(upstream.HeaderTenantID),
		})
	})
	adminAPI = httptest.NewServer(mux)
	t.Cleanup(adminAPI.Close)

	cfg := &config.Config{
		Environment: config.EnvDevelopment,
		Tenancy: config.TenancyConfig{
			RootDomain:      "classdeck.test",
			PreviewSuffix:   "vercel.app",
			AdminPathPrefix: "/admin",
			TenantPathSeg:   "s",
		},
	}

	binder, err := session.NewBinder("system-test-secret", 168*time.Hour, 24*time.Hour)
	require.NoError(t, err)
	cookies := session.NewCookiePolicy("classdeck_session", ".classdeck.test", false, 168*time.Hour)
	client := upstream.New(upstream.Config{BaseURL: adminAPI.URL, Timeout: 5 * time.Second})
	cache := tenantcache.New(client, 5*time.Minute, 10*time.Minute)
	resolver := tenancy.NewResolver("classdeck.test", "vercel.app")

	rl := transportHTTP.NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Close)

	handler := transportHTTP.NewHandler(cfg, binder, cookies, client, cache, resolver,
		audit.NewSlogLogger(), rl)

	gateway = httptest.NewServer(handler.NewRouter())
	t.Cleanup(gateway.Close)
	return gateway, adminAPI
}

// do sends a request to the gateway with a spoofed Host header and an
// optional session cookie, the way a reverse proxy would deliver it.
func do(t *testing.T, gatewayURL, method, host, path, cookie, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, gatewayURL+path, rdr)
	require.NoError(t, err)
	req.Host = host
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", "classdeck_session="+cookie)
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("X-CSRF-Token", "test")
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func sessionCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "classdeck_session" && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("no session cookie in response")
	return ""
}

// TestPurpose: Validates the full login-to-workspace-to-logout lifecycle over the wire.
// Scope: System Test
// Security: One login on the root domain must carry the session onto the tenant
// subdomain, and logout must kill it everywhere.
// Expected: Login sets the cookie and points at the tenant origin; the cookie opens the
// workspace on the subdomain; after logout the same cookie is still structurally valid
// but the cleared response has expired it for the browser.
// Test Case ID: SYS-01
func TestGateway_SessionLifecycle(t *testing.T) {
	gateway, _ := startGateway(t)

	// Login on the root domain.
	resp := do(t, gateway.URL, http.MethodPost, "classdeck.test", "/api/v1/auth/login", "",
		`{"email":"admin@escola1.test","password":"correct-password"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		RedirectTo string `json:"redirectTo"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, "http://escola1.classdeck.test", login.RedirectTo)
	cookie := sessionCookie(t, resp)

	// The same cookie works on the tenant subdomain.
	resp = do(t, gateway.URL, http.MethodGet, "escola1.classdeck.test", "/students", cookie, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var proxied struct {
		UpstreamPath string `json:"upstreamPath"`
		TenantID     string `json:"tenantId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&proxied))
	assert.Equal(t, "/admin/students", proxied.UpstreamPath)
	assert.Equal(t, "t-1", proxied.TenantID)

	// Logout from the subdomain clears both scopes and redirects home.
	resp = do(t, gateway.URL, http.MethodGet, "escola1.classdeck.test", "/logout", cookie, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "http://classdeck.test", resp.Header.Get("Location"))

	domains := map[string]bool{}
	for _, c := range resp.Cookies() {
		assert.LessOrEqual(t, c.MaxAge, 0)
		domains[c.Domain] = true
	}
	assert.True(t, domains["classdeck.test"], "parent domain cookie not cleared")
	assert.True(t, domains["escola1.classdeck.test"], "host cookie not cleared")
}

// TestPurpose: Validates that the global-admin surface is unreachable from a tenant origin.
// Scope: System Test
// Security: Subdomain containment of the global console.
// Expected: /admin on a subdomain redirects to the tenant root before any handler runs;
// the same path on the root domain demands authentication.
// Test Case ID: SYS-02
func TestGateway_AdminContainment(t *testing.T) {
	gateway, _ := startGateway(t)

	resp := do(t, gateway.URL, http.MethodGet, "escola1.classdeck.test", "/admin", "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = do(t, gateway.URL, http.MethodGet, "classdeck.test", "/admin", "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestPurpose: Validates fail-open hostname handling at the wire level.
// Scope: System Test
// Expected: A request with an unresolvable Host is served on the root surface
// instead of being refused.
// Test Case ID: SYS-03
func TestGateway_FailOpenHost(t *testing.T) {
	gateway, _ := startGateway(t)

	resp := do(t, gateway.URL, http.MethodGet, "203.0.113.7", "/healthz", "", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), "ok"))
}
