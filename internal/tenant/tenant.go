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

package tenant

// Unlimited is the sentinel value for numeric plan limits without a ceiling.
const Unlimited = -1

// Tenant is one customer organization, addressed by a unique subdomain.
// The record is owned by the upstream admin API; the gateway only ever holds
// a read-through cached copy keyed by subdomain.
type Tenant struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Subdomain string   `json:"subdomain"`
	Branding  Branding `json:"branding"`
	Settings  Settings `json:"settings"`
	Plan      Plan     `json:"plan"`
	Metadata  Metadata `json:"metadata"`
}

// Branding holds the visual identity the workspace UI reads.
type Branding struct {
	Logo            string `json:"logo,omitempty"`
	PrimaryColor    string `json:"primaryColor"`
	SecondaryColor  string `json:"secondaryColor"`
	AccentColor     string `json:"accentColor"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	Favicon         string `json:"favicon,omitempty"`
}

// Settings holds per-tenant localization settings.
type Settings struct {
	Timezone string `json:"timezone"`
	Locale   string `json:"locale"`
	Currency string `json:"currency"`
}

// Plan types
const (
	PlanTrial        = "trial"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanGrowth       = "growth"
)

// Plan holds the subscription tier and its limits.
type Plan struct {
	Type   string `json:"type"`
	Limits Limits `json:"limits"`
}

// Limits holds plan ceilings. Numeric fields are a non-negative ceiling or
// the Unlimited sentinel.
type Limits struct {
	MaxUsers       int  `json:"maxUsers"`
	MaxClasses     int  `json:"maxClasses"`
	MaxMissions    int  `json:"maxMissions"`
	MaxStorage     int  `json:"maxStorage"`
	CustomBranding bool `json:"customBranding"`
	APIAccess      bool `json:"apiAccess"`
	CustomDomain   bool `json:"customDomain"`
}

// Metadata holds lifecycle flags.
type Metadata struct {
	OnboardingCompleted bool `json:"onboardingCompleted"`
}

// IsUnlimited reports whether a numeric limit carries the sentinel.
func IsUnlimited(limit int) bool {
	return limit == Unlimited
}

// Allows reports whether a numeric limit admits the given usage count.
func Allows(limit, current int) bool {
	if IsUnlimited(limit) {
		return true
	}
	return current < limit
}

// OnboardingCompleted reports whether the one-time setup flow has finished.
func (t *Tenant) OnboardingCompleted() bool {
	return t.Metadata.OnboardingCompleted
}
