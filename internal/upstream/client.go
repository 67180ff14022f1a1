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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/classdeck/classdeck/internal/session"
	"github.com/classdeck/classdeck/internal/tenant"
)

// Tenant scoping headers. The backend rejects calls whose scoping headers
// disagree with the data they touch; stamping them here is the single
// enforcement point, so no screen can forget to scope its own requests.
const (
	HeaderTenantID        = "X-Tenant-ID"
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
)

// Config holds upstream client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the single egress point to the admin API. It is constructed and
// injected; call sites never reach for package-level state, so tests supply
// a fake by swapping the instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an upstream client with an instrumented transport.
func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// LoginResult is the upstream's answer to a successful credential exchange.
type LoginResult struct {
	User         LoginUser `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
}

// LoginUser is the identity portion of a login response.
type LoginUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	TenantID        string `json:"tenantId"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

// Login exchanges credentials for tokens and identity claims. Backend
// rejection surfaces as a typed error and nothing else happens.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case http.StatusLocked:
		return nil, ErrAccountLocked
	default:
		return nil, readAPIError(resp)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.User.ID == "" || result.AccessToken == "" {
		return nil, fmt.Errorf("incomplete login response from upstream")
	}
	return &result, nil
}

// InvalidateSession asks the backend to drop the access token. Callers treat
// failure as non-fatal: local teardown must finish regardless.
func (c *Client) InvalidateSession(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}
	return nil
}

// GetTenant fetches the tenant record by subdomain from the public lookup
// endpoint. The endpoint is read-only and unauthenticated.
func (c *Client) GetTenant(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tenants/public/"+subdomain, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tenant request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrTenantNotFound
	default:
		return nil, readAPIError(resp)
	}

	var envelope struct {
		Data tenant.Tenant `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode tenant record: %w", err)
	}
	if envelope.Data.Subdomain == "" {
		return nil, fmt.Errorf("incomplete tenant record from upstream")
	}
	return &envelope.Data, nil
}

// CompleteOnboarding flips metadata.onboardingCompleted to true. The call is
// idempotent: flipping an already-completed tenant succeeds.
func (c *Client) CompleteOnboarding(ctx context.Context, claims *session.Claims) error {
	body := bytes.NewReader([]byte(`{"onboardingCompleted":true}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/admin/tenants/onboarding", body)
	if err != nil {
		return fmt.Errorf("failed to build onboarding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.stamp(req, claims)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("onboarding update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}
	return nil
}

// Do forwards an arbitrary workspace data call upstream, stamped with the
// session's bearer token and tenant scope. method and path address the admin
// API; body may be nil.
func (c *Client) Do(ctx context.Context, claims *session.Claims, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.stamp(req, claims)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	return resp, nil
}

// stamp attaches the bearer token and, for tenant-scoped sessions, both
// tenant scoping headers. The decision keys off session state alone, never
// off caller intent.
func (c *Client) stamp(req *http.Request, claims *session.Claims) {
	if claims == nil {
		return
	}
	if claims.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+claims.AccessToken)
	}
	if claims.Scoped() {
		if claims.TenantID != "" {
			req.Header.Set(HeaderTenantID, claims.TenantID)
		}
		if claims.TenantSubdomain != "" {
			req.Header.Set(HeaderTenantSubdomain, claims.TenantSubdomain)
		}
	}
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}
