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
	"regexp"
	"strings"
)

// Subdomain label constraints
const (
	MinSubdomainLength = 3
	MaxSubdomainLength = 30
)

// Labels that can never address a tenant.
var reservedSubdomains = map[string]struct{}{
	"www":       {},
	"admin":     {},
	"api":       {},
	"app":       {},
	"login":     {},
	"register":  {},
	"dashboard": {},
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidSubdomain reports whether a label may address a tenant: lowercase
// alphanumerics and inner hyphens, within length bounds, and not reserved.
func ValidSubdomain(subdomain string) bool {
	subdomain = strings.ToLower(subdomain)
	if len(subdomain) < MinSubdomainLength || len(subdomain) > MaxSubdomainLength {
		return false
	}
	if _, reserved := reservedSubdomains[subdomain]; reserved {
		return false
	}
	return subdomainPattern.MatchString(subdomain)
}
