package rbac

import (
	"sort"
	"strings"

	"github.com/platinummonkey/apim-console/pkg/auth"
)

// RoleScope is the administrative domain a role applies within
type RoleScope string

const (
	ScopeManagement  RoleScope = "MANAGEMENT"
	ScopePortal      RoleScope = "PORTAL"
	ScopeAPI         RoleScope = "API"
	ScopeApplication RoleScope = "APPLICATION"
	ScopeGroup       RoleScope = "GROUP"
)

// ReferenceType identifies what a membership is attached to
type ReferenceType string

const (
	ReferenceManagement  ReferenceType = "MANAGEMENT"
	ReferencePortal      ReferenceType = "PORTAL"
	ReferenceAPI         ReferenceType = "API"
	ReferenceApplication ReferenceType = "APPLICATION"
	ReferenceGroup       ReferenceType = "GROUP"
)

// DefaultReferenceID is the single environment every console deployment has
const DefaultReferenceID = "DEFAULT"

// System role names
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
	RoleOwner = "OWNER"
)

// Global admin authorities. Holding either one bypasses fine-grained checks.
const (
	ManagementAdmin auth.Authority = "MANAGEMENT:ADMIN"
	PortalAdmin     auth.Authority = "PORTAL:ADMIN"
)

// Role is a role held by a subject on one reference
type Role struct {
	Scope       RoleScope `json:"scope"`
	Name        string    `json:"name"`
	ReferenceID string    `json:"reference_id"`
}

// Authority renders the role as "<SCOPE>:<NAME>"
func (r Role) Authority() auth.Authority {
	return auth.Authority(string(r.Scope) + ":" + r.Name)
}

// Action is one of the CRUD letters a role may grant on a permission
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Letter returns the single character used in stored role definitions
func (a Action) Letter() byte {
	switch a {
	case ActionCreate:
		return 'C'
	case ActionRead:
		return 'R'
	case ActionUpdate:
		return 'U'
	case ActionDelete:
		return 'D'
	default:
		return 0
	}
}

// ParseAction parses an action name, case-insensitively
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, true
	default:
		return "", false
	}
}

// Permission names a capability domain
type Permission string

const (
	PermissionManagementInstance    Permission = "MANAGEMENT_INSTANCE"
	PermissionManagementGroup       Permission = "MANAGEMENT_GROUP"
	PermissionManagementTag         Permission = "MANAGEMENT_TAG"
	PermissionManagementTenant      Permission = "MANAGEMENT_TENANT"
	PermissionManagementRole        Permission = "MANAGEMENT_ROLE"
	PermissionManagementAudit       Permission = "MANAGEMENT_AUDIT"
	PermissionManagementAPI         Permission = "MANAGEMENT_API"
	PermissionPortalMetadata        Permission = "PORTAL_METADATA"
	PermissionPortalDocumentation   Permission = "PORTAL_DOCUMENTATION"
	PermissionPortalApplication     Permission = "PORTAL_APPLICATION"
	PermissionPortalAPIHeader       Permission = "PORTAL_API_HEADER"
	PermissionAPIDefinition         Permission = "API_DEFINITION"
	PermissionAPIPlan               Permission = "API_PLAN"
	PermissionAPIMember             Permission = "API_MEMBER"
	PermissionAPIDocumentation      Permission = "API_DOCUMENTATION"
	PermissionAPIAnalytics          Permission = "API_ANALYTICS"
	PermissionApplicationDefinition Permission = "APPLICATION_DEFINITION"
	PermissionApplicationMember     Permission = "APPLICATION_MEMBER"
	PermissionApplicationSubscribe  Permission = "APPLICATION_SUBSCRIPTION"
	PermissionGroupMember           Permission = "GROUP_MEMBER"
)

// Scope returns the role scope the permission is evaluated in, derived from its prefix
func (p Permission) Scope() RoleScope {
	name := string(p)
	switch {
	case strings.HasPrefix(name, "MANAGEMENT_"):
		return ScopeManagement
	case strings.HasPrefix(name, "PORTAL_"):
		return ScopePortal
	case strings.HasPrefix(name, "API_"):
		return ScopeAPI
	case strings.HasPrefix(name, "APPLICATION_"):
		return ScopeApplication
	case strings.HasPrefix(name, "GROUP_"):
		return ScopeGroup
	default:
		return ""
	}
}

// PermissionDescriptor is a capability plus the actions required on it
type PermissionDescriptor struct {
	Permission Permission `json:"permission"`
	Actions    []Action   `json:"actions"`
}

// NewPermissionDescriptor is a small constructor for call sites
func NewPermissionDescriptor(permission Permission, actions ...Action) PermissionDescriptor {
	return PermissionDescriptor{Permission: permission, Actions: actions}
}

// RoleDefinition describes what a role grants. Permission values are CRUD
// letter sets such as "CRUD" or "R".
type RoleDefinition struct {
	Scope       RoleScope             `json:"scope" yaml:"scope"`
	Name        string                `json:"name" yaml:"name"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	System      bool                  `json:"system" yaml:"system"`
	Default     bool                  `json:"default" yaml:"default"`
	Permissions map[Permission]string `json:"permissions" yaml:"permissions"`
}

// Grants reports whether the definition allows every action on the permission
func (d RoleDefinition) Grants(permission Permission, actions ...Action) bool {
	if len(actions) == 0 {
		return false
	}
	letters, ok := d.Permissions[permission]
	if !ok {
		return false
	}
	for _, a := range actions {
		l := a.Letter()
		if l == 0 || strings.IndexByte(strings.ToUpper(letters), l) < 0 {
			return false
		}
	}
	return true
}

// dedupeRoles collapses equal roles and sorts the result
func dedupeRoles(roles []Role) []Role {
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ReferenceID < out[j].ReferenceID
	})
	return out
}
