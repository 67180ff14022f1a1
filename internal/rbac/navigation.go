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

package rbac

// Feature is a navigable area of the console.
type Feature string

const (
	FeatureHome         Feature = "home"
	FeatureStudents     Feature = "students"
	FeatureClasses      Feature = "classes"
	FeatureMissions     Feature = "missions"
	FeatureProducts     Feature = "products"
	FeatureSales        Feature = "sales"
	FeatureAdminUsers   Feature = "admin_users"
	FeatureSettings     Feature = "settings"
	FeatureTeacherPanel Feature = "teacher_panel"
	FeatureGlobalAdmin  Feature = "global_admin"
)

// tenantWorkspaceNav is the navigation shared by every tenant-scoped role.
var tenantWorkspaceNav = []Feature{
	FeatureHome,
	FeatureStudents,
	FeatureClasses,
	FeatureMissions,
	FeatureProducts,
	FeatureSales,
	FeatureAdminUsers,
	FeatureSettings,
}

// NavigationFor returns the feature set a role may navigate. Tenant admins
// and teachers share the tenant workspace; teachers additionally get the
// grading/reward panel; super admins see only the global surface. Unknown
// roles get nothing: fail closed, never fail open.
func NavigationFor(role Role) []Feature {
	switch role {
	case RoleSuperAdmin:
		return []Feature{FeatureGlobalAdmin}
	case RoleTenantAdmin:
		return append([]Feature(nil), tenantWorkspaceNav...)
	case RoleTeacher:
		nav := append([]Feature(nil), tenantWorkspaceNav...)
		return append(nav, FeatureTeacherPanel)
	case RoleUnknown:
		return nil
	}
	return nil
}

// CanAccessFeature reports whether a role's navigation includes a feature.
func CanAccessFeature(role Role, feature Feature) bool {
	for _, f := range NavigationFor(role) {
		if f == feature {
			return true
		}
	}
	return false
}
