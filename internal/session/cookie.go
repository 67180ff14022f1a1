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
	"net/http"
	"strings"
	"time"
)

// securePrefix is the cookie-name prefix browsers only accept over HTTPS
// with the Secure attribute set.
const securePrefix = "__Secure-"

// CookiePolicy decides how the session cookie is named and scoped. The
// Domain attribute is the parent of every tenant subdomain, which is what
// lets a single login ride across an unbounded number of subdomains.
type CookiePolicy struct {
	baseName string
	domain   string // parent domain, leading dot
	secure   bool
	maxAge   time.Duration
}

// NewCookiePolicy creates a policy. In the production tier the cookie is
// Secure and carries the __Secure- name prefix.
func NewCookiePolicy(name, parentDomain string, secure bool, maxAge time.Duration) *CookiePolicy {
	return &CookiePolicy{
		baseName: name,
		domain:   parentDomain,
		secure:   secure,
		maxAge:   maxAge,
	}
}

// Name returns the environment-tiered cookie name.
func (p *CookiePolicy) Name() string {
	if p.secure {
		return securePrefix + p.baseName
	}
	return p.baseName
}

// names returns every cookie name a session may have been written under, so
// teardown also clears cookies left by a different security tier.
func (p *CookiePolicy) names() []string {
	return []string{p.baseName, securePrefix + p.baseName}
}

// Write sets the session cookie on the parent domain.
func (p *CookiePolicy) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name(),
		Value:    token,
		Path:     "/",
		Domain:   p.domain,
		MaxAge:   int(p.maxAge.Seconds()),
		Secure:   p.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session token from the request, or "".
func (p *CookiePolicy) Read(r *http.Request) string {
	for _, name := range p.names() {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// Clear expires every known session cookie name against both the exact
// request host and the parent domain. A cookie set on the parent is not
// removed by an expiry written against a leaf hostname, so both scopes are
// cleared explicitly.
func (p *CookiePolicy) Clear(w http.ResponseWriter, requestHost string) {
	host := requestHost
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	domains := []string{p.domain}
	if host != "" && host != strings.TrimPrefix(p.domain, ".") {
		domains = append(domains, host)
	}

	for _, name := range p.names() {
		for _, domain := range domains {
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    "",
				Path:     "/",
				Domain:   domain,
				MaxAge:   -1,
				Expires:  time.Unix(0, 0),
				Secure:   p.secure,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
}
