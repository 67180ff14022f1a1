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

package tenancy

import (
	"strings"
)

// Loopback markers recognized in development. A host or URL containing one
// of these is resolved with the local rules regardless of the configured
// root domain.
var loopbackMarkers = []string{"localhost", "127.0.0.1", "lvh.me"}

// Resolver derives the tenant subdomain from a request host. Resolution is a
// pure function of the host string and this static configuration: no I/O, no
// memory, and a definite answer for every input.
type Resolver struct {
	rootDomain    string // may carry a port, e.g. "lvh.me:3000"
	previewSuffix string // deployment-preview domain, e.g. "vercel.app"
}

// NewResolver creates a resolver for the given root domain and
// deployment-preview suffix.
func NewResolver(rootDomain, previewSuffix string) *Resolver {
	return &Resolver{
		rootDomain:    rootDomain,
		previewSuffix: previewSuffix,
	}
}

// Resolve returns the tenant subdomain for a request, or "" when the request
// targets the un-tenanted root surface. Rules are ordered, first match wins:
//
//  1. Local development: a host under a loopback marker (escola1.lvh.me,
//     demo.localhost) yields the leftmost label; the bare marker yields none.
//  2. Preview deployments: <label>---<branch>.<previewSuffix> yields <label>.
//  3. Production: root domain and www.<root> yield none; <label>.<root>
//     yields <label>; anything else yields none.
//
// A malformed or empty host resolves to none, never to an error.
func (r *Resolver) Resolve(host string) string {
	hostname := stripPort(host)
	if hostname == "" {
		return ""
	}

	// Local development environment
	for _, marker := range loopbackMarkers {
		if hostname == marker {
			return ""
		}
		if strings.HasSuffix(hostname, "."+marker) {
			label, _, _ := strings.Cut(hostname, ".")
			return label
		}
	}

	// Preview deployment URLs (tenant---branch-name.vercel.app)
	if r.previewSuffix != "" && strings.HasSuffix(hostname, "."+r.previewSuffix) {
		if label, rest, found := strings.Cut(hostname, "---"); found && label != "" && rest != "" {
			return label
		}
	}

	// Regular subdomain detection against the configured root domain
	root := stripPort(r.rootDomain)
	if hostname == root || hostname == "www."+root {
		return ""
	}
	if sub, found := strings.CutSuffix(hostname, "."+root); found && sub != "" {
		return sub
	}

	return ""
}

func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
