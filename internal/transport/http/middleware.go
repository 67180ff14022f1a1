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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/observability/logger"
	"github.com/classdeck/classdeck/internal/rbac"
	"github.com/classdeck/classdeck/internal/tenancy"
	"github.com/classdeck/classdeck/internal/upstream"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Host(r.Host),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Host(r.Host),
					logger.Path(r.URL.Path),
					logger.Subdomain(GetSubdomain(r.Context())),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// passthroughPrefixes are never rewritten into the tenant namespace: API
// routes and operational endpoints address the gateway itself regardless of
// which hostname they arrive on.
var passthroughPrefixes = []string{"/api/", "/healthz", "/logout"}

// SubdomainRewrite is the per-request routing decision. The hostname is
// resolved exactly once, up front:
//
//   - no subdomain: the request passes through unmodified (fail-open — a
//     proxy that strips the Host header must not take down all traffic);
//   - subdomain + reserved global-admin prefix: hard redirect to the tenant
//     root, never a rewrite;
//   - subdomain: the path is prefixed with the tenant namespace segment,
//     /x becoming /s/<subdomain>/x.
//
// Single pass, no state, no retry semantics.
func (h *Handler) SubdomainRewrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := h.resolver.Resolve(r.Host)
		if sub == "" || !tenancy.ValidSubdomain(sub) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), subdomainKey, sub)
		r = r.WithContext(ctx)

		path := r.URL.Path
		for _, prefix := range passthroughPrefixes {
			if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		// Static assets (a dotted final segment) address the gateway, not a
		// tenant page.
		if last := path[strings.LastIndexByte(path, '/')+1:]; strings.ContainsRune(last, '.') {
			next.ServeHTTP(w, r)
			return
		}

		// A subdomain visitor may never reach the global-admin surface.
		if path == h.adminPrefix || strings.HasPrefix(path, h.adminPrefix+"/") {
			h.auditLogger.Log(r.Context(), audit.Event{
				Type:      audit.TypeAdminAccessBlocked,
				Subdomain: sub,
				Resource:  path,
				IPAddress: getIPAddress(r),
				UserAgent: r.UserAgent(),
			})
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}

		if path == "/" {
			r.URL.Path = "/" + h.tenantSeg + "/" + sub
		} else {
			r.URL.Path = "/" + h.tenantSeg + "/" + sub + path
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware validates the session token on every request and slides
// the expiry window: a token inside its final re-issue window comes back
// reissued on the response.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cookies.Read(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, expiresAt, err := h.binder.Verify(token)
		if err != nil {
			h.cookies.Clear(w, r.Host)
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		if h.binder.ShouldReissue(expiresAt) {
			fresh, err := h.binder.Issue(claims)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to reissue session", logger.Error(err))
			} else {
				h.cookies.Write(w, fresh)
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeSessionReissued,
					TenantID:  claims.TenantID,
					Subdomain: claims.TenantSubdomain,
					ActorID:   claims.UserID,
					Resource:  "session",
				})
			}
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperAdmin gates the global surface. Everything that is not
// provably a super admin is turned away, unknown roles included.
func (h *Handler) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		switch claims.Role {
		case rbac.RoleSuperAdmin:
			next.ServeHTTP(w, r)
		case rbac.RoleTenantAdmin, rbac.RoleTeacher, rbac.RoleUnknown:
			respondError(w, http.StatusForbidden, "global admin access required")
		default:
			respondError(w, http.StatusForbidden, "global admin access required")
		}
	})
}

// TenantContext resolves the workspace's tenant record through the cache
// and injects it into the request context. Lookup failure blocks rather
// than guesses: the caller sees a retryable loading state, not a crash and
// not an un-tenanted fallthrough.
func (h *Handler) TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := chi.URLParam(r, "subdomain")
		if !tenancy.ValidSubdomain(sub) {
			respondError(w, http.StatusNotFound, "unknown tenant")
			return
		}

		t, err := h.tenants.Get(r.Context(), sub)
		if err != nil {
			if errors.Is(err, upstream.ErrTenantNotFound) {
				respondError(w, http.StatusNotFound, "unknown tenant")
				return
			}
			slog.WarnContext(r.Context(), "tenant record unavailable",
				logger.Subdomain(sub),
				logger.Error(err),
			)
			w.Header().Set("Retry-After", "5")
			respondError(w, http.StatusServiceUnavailable, "tenant record is loading")
			return
		}

		ctx := context.WithValue(r.Context(), tenantKey, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OnboardingGuard intercepts navigation into a workspace whose one-time
// setup has not finished. Every path except the setup route redirects to
// the setup route; the setup route itself is exempt so the redirect cannot
// loop. Once the cached record reports completion the guard never engages
// again.
func (h *Handler) OnboardingGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := GetTenant(r.Context())
		if t == nil {
			w.Header().Set("Retry-After", "5")
			respondError(w, http.StatusServiceUnavailable, "tenant record is loading")
			return
		}

		if t.OnboardingCompleted() || h.isSetupPath(r.URL.Path, t.Subdomain) {
			next.ServeHTTP(w, r)
			return
		}

		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeOnboardingRedirect,
			TenantID:  t.ID,
			Subdomain: t.Subdomain,
			Resource:  r.URL.Path,
			IPAddress: getIPAddress(r),
		})
		http.Redirect(w, r, setupRoute, http.StatusTemporaryRedirect)
	})
}

// setupRoute is the external path of the one-time setup flow. On a
// subdomain the rewrite middleware maps it back into the tenant namespace.
const setupRoute = "/setup"

func (h *Handler) isSetupPath(path, subdomain string) bool {
	rel := strings.TrimPrefix(path, "/"+h.tenantSeg+"/"+subdomain)
	return rel == setupRoute || strings.HasPrefix(rel, setupRoute+"/")
}

// CSRFMiddleware protects state-changing API requests. A custom header is
// enough: cross-site form posts cannot set one.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("X-CSRF-Token") == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", "method", r.Method, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "CSRF protection: X-CSRF-Token header is required for state-changing operations")
			return
		}

		next.ServeHTTP(w, r)
	})
}
