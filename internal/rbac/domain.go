package rbac

import "sort"

// PermissionMap is the flattened per-user view of entity to granted actions,
// the shape served to API clients.
type PermissionMap map[string][]Action

// Has reports whether the map grants action on entity. Absent entities grant
// nothing.
func (m PermissionMap) Has(entity string, action Action) bool {
	for _, a := range m[entity] {
		if a == action {
			return true
		}
	}
	return false
}

// GrantSource records how a permission check was satisfied.
type GrantSource string

const (
	GrantDirect     GrantSource = "direct"
	GrantHierarchy  GrantSource = "hierarchy"
	GrantDependency GrantSource = "dependency"
)

// CheckResult is the outcome of a single permission check.
type CheckResult struct {
	Allowed   bool        `json:"allowed"`
	Reason    string      `json:"reason"`
	GrantedBy GrantSource `json:"granted_by,omitempty"`
}

// UserAccess is the minimal user projection needed to evaluate permissions.
type UserAccess struct {
	ID           string
	CompanyID    string
	IsActive     bool
	IsSuperAdmin bool
}

// SuperAdminMap materializes a full map over applicable actions. It exists
// only so the permissions endpoint can answer uniformly for super-admins;
// authorization itself uses the bypass flag, never this map.
func SuperAdminMap() PermissionMap {
	m := make(PermissionMap, len(Entities))
	for _, e := range Entities {
		actions := make([]Action, len(e.Actions))
		copy(actions, e.Actions)
		m[e.Name] = actions
	}
	return m
}

func sortActions(actions []Action) {
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
}
