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
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/config"
	"github.com/classdeck/classdeck/internal/observability/logger"
	"github.com/classdeck/classdeck/internal/rbac"
	"github.com/classdeck/classdeck/internal/session"
	"github.com/classdeck/classdeck/internal/tenancy"
	"github.com/classdeck/classdeck/internal/tenantcache"
	"github.com/classdeck/classdeck/internal/upstream"
)

// Handler holds the HTTP surface's dependencies. Everything is injected;
// there is no package-level state to swap or reset in tests.
type Handler struct {
	binder      *session.Binder
	cookies     *session.CookiePolicy
	upstream    *upstream.Client
	tenants     *tenantcache.Cache
	resolver    *tenancy.Resolver
	auditLogger audit.Logger
	rateLimiter *RateLimiter

	protocol    string
	rootDomain  string
	adminPrefix string
	tenantSeg   string
}

// NewHandler creates the HTTP handler with its dependencies.
func NewHandler(
	cfg *config.Config,
	binder *session.Binder,
	cookies *session.CookiePolicy,
	client *upstream.Client,
	tenants *tenantcache.Cache,
	resolver *tenancy.Resolver,
	auditLogger audit.Logger,
	rateLimiter *RateLimiter,
) *Handler {
	return &Handler{
		binder:      binder,
		cookies:     cookies,
		upstream:    client,
		tenants:     tenants,
		resolver:    resolver,
		auditLogger: auditLogger,
		rateLimiter: rateLimiter,
		protocol:    cfg.Protocol(),
		rootDomain:  cfg.Tenancy.RootDomain,
		adminPrefix: cfg.Tenancy.AdminPathPrefix,
		tenantSeg:   cfg.Tenancy.TenantPathSeg,
	}
}

// NewRouter creates the chi router with all routes and middleware configured.
func (h *Handler) NewRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RateLimitMiddleware(h.rateLimiter))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "http.request")
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.SubdomainRewrite)

	r.Get("/healthz", h.HealthCheck)
	r.Get("/logout", h.LogoutRedirect)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.CSRFMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/session", h.Session)
			r.Get("/navigation", h.Navigation)
			r.Get("/tenant", h.TenantInfo)
			r.Post("/tenant/onboarding/complete", h.CompleteOnboarding)
		})
	})

	r.Route("/"+h.tenantSeg+"/{subdomain}", func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.TenantContext)
		r.Use(h.OnboardingGuard)
		r.HandleFunc("/*", h.Workspace)
		r.HandleFunc("/", h.Workspace)
	})

	r.Route(h.adminPrefix, func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.RequireSuperAdmin)
		r.HandleFunc("/*", h.GlobalAdmin)
		r.HandleFunc("/", h.GlobalAdmin)
	})

	return r
}

// HealthCheck returns service health status.
// @Summary Health Check
// @Description Checks if the gateway is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "classdeck-gateway",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User       sessionUser `json:"user"`
	RedirectTo string      `json:"redirectTo"`
}

// sessionUser is the identity surface exposed to the browser. Backend
// tokens never appear here; they live only inside the signed cookie.
type sessionUser struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            rbac.Role `json:"role"`
	TenantID        string    `json:"tenantId,omitempty"`
	TenantSubdomain string    `json:"tenantSubdomain,omitempty"`
}

func newSessionUser(c *session.Claims) sessionUser {
	u := sessionUser{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
		Role:  c.Role,
	}
	if c.Scoped() {
		u.TenantID = c.TenantID
		u.TenantSubdomain = c.TenantSubdomain
	}
	return u
}

// Login exchanges credentials for a bound session. On success the signed
// session cookie is set against the parent domain and the response carries
// the landing URL for the caller's role; the browser performs the actual
// cross-subdomain navigation.
// @Summary Login
// @Description Authenticate against the admin API and establish a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 423 {object} map[string]string
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.upstream.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLoginFailed,
			Resource:  req.Email,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
		})
		switch {
		case errors.Is(err, upstream.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, upstream.ErrAccountLocked):
			respondError(w, http.StatusLocked, "account is locked")
		default:
			slog.ErrorContext(r.Context(), "login upstream failure", logger.Error(err))
			respondError(w, http.StatusBadGateway, "authentication service unavailable")
		}
		return
	}

	claims := &session.Claims{
		UserID:          result.User.ID,
		Email:           result.User.Email,
		Name:            result.User.Name,
		Role:            rbac.ParseRole(result.User.Role),
		TenantID:        result.User.TenantID,
		TenantSubdomain: result.User.TenantSubdomain,
		AccessToken:     result.AccessToken,
		RefreshToken:    result.RefreshToken,
	}

	token, err := h.binder.Issue(claims)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session", logger.Error(err), logger.UserID(claims.UserID))
		respondError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	h.cookies.Write(w, token)

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLoginSuccess,
		TenantID:  claims.TenantID,
		Subdomain: claims.TenantSubdomain,
		ActorID:   claims.UserID,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, loginResponse{
		User:       newSessionUser(claims),
		RedirectTo: h.landingURL(claims),
	})
}

// landingURL dispatches a fresh session to its home surface. Super admins
// land on the global console; tenant-bound roles are sent to their own
// subdomain's absolute URL so the shared parent-domain cookie follows them
// across the origin hop. A tenant-bound session missing its subdomain falls
// back to the root origin rather than failing the login.
func (h *Handler) landingURL(claims *session.Claims) string {
	if claims.Role == rbac.RoleSuperAdmin {
		return h.adminPrefix
	}
	if claims.TenantSubdomain != "" {
		return h.protocol + "://" + claims.TenantSubdomain + "." + h.rootDomain
	}
	return "/"
}

// Logout tears the session down in a fixed order: backend invalidation is
// attempted first under its own deadline, then both cookie variants are
// cleared on the exact host and the parent domain. The response is written
// only after teardown completes, so a following request can never race a
// half-dead session.
// @Summary Logout
// @Description Invalidate the backend session and clear session cookies
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	h.teardownSession(r.Context(), w, r, claims)
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "logged_out",
		"redirectTo": h.protocol + "://" + h.rootDomain,
	})
}

// LogoutRedirect is the browser-facing logout: same teardown, but it
// answers with a 303 to the root origin so a plain link works.
func (h *Handler) LogoutRedirect(w http.ResponseWriter, r *http.Request) {
	var claims *session.Claims
	if token := h.cookies.Read(r); token != "" {
		// Best effort. An expired or garbled token still gets its
		// cookies cleared below.
		claims, _, _ = h.binder.Verify(token)
	}
	h.teardownSession(r.Context(), w, r, claims)
	http.Redirect(w, r, h.protocol+"://"+h.rootDomain, http.StatusSeeOther)
}

func (h *Handler) teardownSession(ctx context.Context, w http.ResponseWriter, r *http.Request, claims *session.Claims) {
	if claims != nil && claims.AccessToken != "" {
		invalidateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.upstream.InvalidateSession(invalidateCtx, claims.AccessToken); err != nil {
			slog.WarnContext(ctx, "backend session invalidation failed", logger.Error(err))
		}
	}

	h.cookies.Clear(w, r.Host)

	event := audit.Event{
		Type:      audit.TypeLogout,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	}
	if claims != nil {
		event.TenantID = claims.TenantID
		event.Subdomain = claims.TenantSubdomain
		event.ActorID = claims.UserID
	}
	h.auditLogger.Log(ctx, event)
}

// Session returns the current session's identity claims.
// @Summary Current Session
// @Description Returns the authenticated user's identity, never backend tokens
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/v1/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user": newSessionUser(claims),
	})
}

// Navigation returns the feature set visible to the session's role. The
// server is the single source of truth here; clients render what they are
// given and nothing else.
// @Summary Navigation
// @Description Lists the features visible to the current role
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/v1/navigation [get]
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	features := rbac.NavigationFor(claims.Role)
	if features == nil {
		features = []rbac.Feature{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"role":     claims.Role,
		"features": features,
	})
}

// TenantInfo returns the tenant record for the current context: the
// request's subdomain when there is one, otherwise the session's bound
// tenant. Super admins on the root domain have neither and get an empty
// answer, which is a valid state, not an error.
// @Summary Tenant Info
// @Description Returns the tenant record for the current subdomain or session
// @Tags Tenant
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/tenant [get]
func (h *Handler) TenantInfo(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	sub := GetSubdomain(r.Context())
	if sub == "" && claims != nil {
		sub = claims.TenantSubdomain
	}

	t, err := h.tenants.Get(r.Context(), sub)
	if err != nil {
		if errors.Is(err, upstream.ErrTenantNotFound) {
			respondError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		slog.WarnContext(r.Context(), "tenant record unavailable", logger.Subdomain(sub), logger.Error(err))
		w.Header().Set("Retry-After", "5")
		respondError(w, http.StatusServiceUnavailable, "tenant record is loading")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenant": t,
	})
}

// CompleteOnboarding marks the session's tenant as fully set up and drops
// the cached record so the next lookup observes the flip immediately. Only
// tenant admins may complete their own tenant's setup.
// @Summary Complete Onboarding
// @Description Marks the session's tenant as fully onboarded
// @Tags Tenant
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/tenant/onboarding/complete [post]
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if claims.Role != rbac.RoleTenantAdmin {
		respondError(w, http.StatusForbidden, "tenant admin access required")
		return
	}

	if err := h.upstream.CompleteOnboarding(r.Context(), claims); err != nil {
		slog.ErrorContext(r.Context(), "onboarding completion failed",
			logger.TenantID(claims.TenantID),
			logger.Error(err),
		)
		respondError(w, http.StatusBadGateway, "failed to complete onboarding")
		return
	}

	h.tenants.Refresh(claims.TenantSubdomain)

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeOnboardingComplete,
		TenantID:  claims.TenantID,
		Subdomain: claims.TenantSubdomain,
		ActorID:   claims.UserID,
		IPAddress: getIPAddress(r),
	})

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "completed",
	})
}

// Workspace proxies tenant workspace calls to the admin API. Tenant-bound
// sessions may only reach the workspace they are bound to; super admins
// may enter any workspace. The upstream path is the workspace-relative
// path under the admin API root.
func (h *Handler) Workspace(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	sub := chi.URLParam(r, "subdomain")

	if claims.Scoped() && claims.TenantSubdomain != sub {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeAdminAccessBlocked,
			TenantID:  claims.TenantID,
			Subdomain: sub,
			ActorID:   claims.UserID,
			Resource:  r.URL.Path,
			IPAddress: getIPAddress(r),
		})
		respondError(w, http.StatusForbidden, "access to this workspace is not permitted")
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/"+h.tenantSeg+"/"+sub)
	if rel == "" {
		rel = "/"
	}
	h.proxy(w, r, claims, "/admin"+rel)
}

// GlobalAdmin proxies global console calls to the admin API without tenant
// scoping. The super-admin gate has already run by the time this executes.
func (h *Handler) GlobalAdmin(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	rel := strings.TrimPrefix(r.URL.Path, h.adminPrefix)
	if rel == "" {
		rel = "/"
	}
	h.proxy(w, r, claims, "/admin"+rel)
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, claims *session.Claims, path string) {
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	resp, err := h.upstream.Do(r.Context(), claims, r.Method, path, body)
	if err != nil {
		slog.ErrorContext(r.Context(), "upstream proxy failure",
			logger.Method(r.Method),
			logger.Path(path),
			logger.Error(err),
		)
		respondError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
