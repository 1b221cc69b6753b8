package rbac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// roleCatalog is the on-disk shape of a role catalog file
type roleCatalog struct {
	Roles []RoleDefinition `yaml:"roles"`
}

// LoadRoleDefinitions parses a YAML role catalog:
//
//	roles:
//	  - scope: MANAGEMENT
//	    name: API_PUBLISHER
//	    permissions:
//	      MANAGEMENT_API: CRUD
func LoadRoleDefinitions(r io.Reader) ([]RoleDefinition, error) {
	var catalog roleCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse role catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(catalog.Roles))
	for i := range catalog.Roles {
		def := &catalog.Roles[i]
		def.Scope = RoleScope(strings.ToUpper(string(def.Scope)))
		if err := validateRoleDefinition(*def); err != nil {
			return nil, fmt.Errorf("role %d: %w", i, err)
		}
		key := string(def.Scope) + ":" + def.Name
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("role %s is defined twice", key)
		}
		seen[key] = struct{}{}
		for perm, letters := range def.Permissions {
			def.Permissions[perm] = strings.ToUpper(letters)
		}
	}

	return catalog.Roles, nil
}

func validateRoleDefinition(def RoleDefinition) error {
	switch def.Scope {
	case ScopeManagement, ScopePortal, ScopeAPI, ScopeApplication, ScopeGroup:
	default:
		return fmt.Errorf("unknown scope %q", def.Scope)
	}
	if def.Name == "" {
		return errors.New("name is required")
	}
	for perm, letters := range def.Permissions {
		if perm.Scope() != def.Scope {
			return fmt.Errorf("permission %s does not belong to scope %s", perm, def.Scope)
		}
		for _, l := range strings.ToUpper(letters) {
			if !strings.ContainsRune("CRUD", l) {
				return fmt.Errorf("permission %s has invalid action letter %q", perm, l)
			}
		}
	}
	return nil
}

// DefaultRoleDefinitions is the built-in catalog every console starts with
func DefaultRoleDefinitions() []RoleDefinition {
	return []RoleDefinition{
		{
			Scope:       ScopeManagement,
			Name:        RoleAdmin,
			Description: "Platform administrator",
			System:      true,
			Permissions: map[Permission]string{
				PermissionManagementInstance: "CRUD",
				PermissionManagementGroup:    "CRUD",
				PermissionManagementTag:      "CRUD",
				PermissionManagementTenant:   "CRUD",
				PermissionManagementRole:     "CRUD",
				PermissionManagementAudit:    "CRUD",
				PermissionManagementAPI:      "CRUD",
			},
		},
		{
			Scope:       ScopeManagement,
			Name:        RoleUser,
			Description: "Default management role",
			Default:     true,
			Permissions: map[Permission]string{
				PermissionManagementAPI:   "CR",
				PermissionManagementGroup: "R",
				PermissionManagementTag:   "R",
			},
		},
		{
			Scope:       ScopePortal,
			Name:        RoleAdmin,
			Description: "Portal administrator",
			System:      true,
			Permissions: map[Permission]string{
				PermissionPortalMetadata:      "CRUD",
				PermissionPortalDocumentation: "CRUD",
				PermissionPortalApplication:   "CRUD",
				PermissionPortalAPIHeader:     "CRUD",
			},
		},
		{
			Scope:       ScopePortal,
			Name:        RoleUser,
			Description: "Default portal role",
			Default:     true,
			Permissions: map[Permission]string{
				PermissionPortalDocumentation: "R",
				PermissionPortalApplication:   "CR",
			},
		},
		{
			Scope:       ScopeAPI,
			Name:        RoleOwner,
			Description: "Owner of an API",
			System:      true,
			Permissions: map[Permission]string{
				PermissionAPIDefinition:    "CRUD",
				PermissionAPIPlan:          "CRUD",
				PermissionAPIMember:        "CRUD",
				PermissionAPIDocumentation: "CRUD",
				PermissionAPIAnalytics:     "R",
			},
		},
		{
			Scope:       ScopeAPI,
			Name:        RoleUser,
			Description: "Read access to an API",
			Default:     true,
			Permissions: map[Permission]string{
				PermissionAPIDefinition:    "R",
				PermissionAPIPlan:          "R",
				PermissionAPIDocumentation: "R",
			},
		},
		{
			Scope:       ScopeApplication,
			Name:        RoleOwner,
			Description: "Owner of an application",
			System:      true,
			Permissions: map[Permission]string{
				PermissionApplicationDefinition: "CRUD",
				PermissionApplicationMember:     "CRUD",
				PermissionApplicationSubscribe:  "CRUD",
			},
		},
		{
			Scope:       ScopeApplication,
			Name:        RoleUser,
			Description: "Read access to an application",
			Default:     true,
			Permissions: map[Permission]string{
				PermissionApplicationDefinition: "R",
				PermissionApplicationSubscribe:  "R",
			},
		},
		{
			Scope:       ScopeGroup,
			Name:        RoleAdmin,
			Description: "Group administrator",
			System:      true,
			Permissions: map[Permission]string{
				PermissionGroupMember: "CRUD",
			},
		},
	}
}

// RoleDefinitionWriter persists role definitions
type RoleDefinitionWriter interface {
	UpsertRoleDefinition(ctx context.Context, def RoleDefinition) error
}

// SeedRoleDefinitions writes every definition to the store
func SeedRoleDefinitions(ctx context.Context, w RoleDefinitionWriter, defs []RoleDefinition) error {
	for _, def := range defs {
		if err := w.UpsertRoleDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to seed role %s:%s: %w", def.Scope, def.Name, err)
		}
	}
	return nil
}
