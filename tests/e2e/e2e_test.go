//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Execution:
//
//	go test -tags e2e -v ./tests/e2e/...
//
// Prerequisites: a running gateway and admin API, e.g.
//
//	CLASSDECK_GATEWAY_URL=http://127.0.0.1:3000 \
//	CLASSDECK_TENANT_HOST=escola1.lvh.me:3000 \
//	CLASSDECK_E2E_EMAIL=admin@escola1.test \
//	CLASSDECK_E2E_PASSWORD=... go test -tags e2e ./tests/e2e/...

var (
	baseURL    = getEnv("CLASSDECK_GATEWAY_URL", "http://127.0.0.1:3000")
	tenantHost = getEnv("CLASSDECK_TENANT_HOST", "escola1.lvh.me:3000")
	email      = getEnv("CLASSDECK_E2E_EMAIL", "admin@escola1.test")
	password   = getEnv("CLASSDECK_E2E_PASSWORD", "correct-password")
	apiBase    = baseURL + "/api/v1"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// TestClient drives the gateway the way a browser would: it carries the
// session cookie by hand so it can replay it across spoofed Host headers.
type TestClient struct {
	httpClient *http.Client
	cookie     string
}

func NewTestClient() *TestClient {
	return &TestClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *TestClient) do(t *testing.T, method, url, host string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if host != "" {
		req.Host = host
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("X-CSRF-Token", "e2e")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)

	for _, cookie := range resp.Cookies() {
		if cookie.MaxAge < 0 {
			c.cookie = ""
		} else if cookie.Value != "" {
			c.cookie = fmt.Sprintf("%s=%s", cookie.Name, cookie.Value)
		}
	}
	return resp
}

// TestPurpose: Validates service liveness.
// Scope: E2E Test
// Expected: /healthz answers 200 with status ok.
// Test Case ID: E2E-01
func TestHealthCheck(t *testing.T) {
	c := NewTestClient()
	resp := c.do(t, http.MethodGet, baseURL+"/healthz", "", nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

// TestPurpose: Validates the complete admin-console session journey against the deployed stack.
// Scope: E2E Test
// Security: A single login must open the tenant workspace on its subdomain; logout must
// close it again.
// Expected: Login 200 with a landing URL, session and navigation answer for the cookie,
// the workspace serves on the tenant host, logout 303 and the session is gone.
// Test Case ID: E2E-02
func TestSessionJourney(t *testing.T) {
	c := NewTestClient()

	// Login
	resp := c.do(t, http.MethodPost, apiBase+"/auth/login", "",
		map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login failed; is the stack running?")
	var login struct {
		RedirectTo string `json:"redirectTo"`
		User       struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.NotEmpty(t, c.cookie, "login did not set a session cookie")
	assert.NotEmpty(t, login.RedirectTo)

	// Session introspection
	resp = c.do(t, http.MethodGet, apiBase+"/session", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Navigation for the role
	resp = c.do(t, http.MethodGet, apiBase+"/navigation", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nav struct {
		Features []string `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nav))
	resp.Body.Close()
	assert.NotEmpty(t, nav.Features)

	// Workspace on the tenant host
	resp = c.do(t, http.MethodGet, baseURL+"/", tenantHost, nil)
	assert.Less(t, resp.StatusCode, 500, "workspace request failed hard")
	resp.Body.Close()

	// Logout
	resp = c.do(t, http.MethodGet, baseURL+"/logout", tenantHost, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp.Body.Close()

	// The session is dead.
	resp = c.do(t, http.MethodGet, apiBase+"/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// TestPurpose: Validates admin containment on the deployed stack.
// Scope: E2E Test
// Expected: /admin on the tenant host redirects to the tenant root.
// Test Case ID: E2E-03
func TestAdminContainment(t *testing.T) {
	c := NewTestClient()
	resp := c.do(t, http.MethodGet, baseURL+"/admin", tenantHost, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}
