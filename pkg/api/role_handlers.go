package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apim-console/pkg/httputil"
	"github.com/platinummonkey/apim-console/pkg/middleware"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// RoleDefinitionReader loads role definitions from the membership store
type RoleDefinitionReader interface {
	GetRoleDefinition(ctx context.Context, scope rbac.RoleScope, name string) (*rbac.RoleDefinition, error)
}

// RoleHandlers serves the role configuration resources
type RoleHandlers struct {
	*Resource
	roles RoleDefinitionReader
}

// NewRoleHandlers creates the role handlers
func NewRoleHandlers(resource *Resource, roles RoleDefinitionReader) *RoleHandlers {
	return &RoleHandlers{Resource: resource, roles: roles}
}

// RegisterRoutes registers the role routes on a /management router.
// Reading a role requires MANAGEMENT_ROLE[READ].
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	canRead := middleware.RequirePermission(h.checker,
		rbac.NewPermissionDescriptor(rbac.PermissionManagementRole, rbac.ActionRead), "")
	router.Handle("/configuration/rolescopes/{scope}/roles/{role}", canRead(http.HandlerFunc(h.getRole))).Methods("GET")
}

// getRole handles GET /management/configuration/rolescopes/{scope}/roles/{role}
func (h *RoleHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scope := rbac.RoleScope(strings.ToUpper(vars["scope"]))
	name := strings.ToUpper(vars["role"])

	switch scope {
	case rbac.ScopeManagement, rbac.ScopePortal, rbac.ScopeAPI, rbac.ScopeApplication, rbac.ScopeGroup:
	default:
		httputil.WriteBadRequest(w, "unknown role scope: "+vars["scope"])
		return
	}

	def, err := h.roles.GetRoleDefinition(r.Context(), scope, name)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to load role definition")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, def)
}
