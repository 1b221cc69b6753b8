package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apim-console/pkg/httputil"
	"github.com/platinummonkey/apim-console/pkg/middleware"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// UserHandlers serves the current user resources
type UserHandlers struct {
	*Resource
}

// NewUserHandlers creates the current user handlers
func NewUserHandlers(resource *Resource) *UserHandlers {
	return &UserHandlers{Resource: resource}
}

// RegisterRoutes registers the current user routes on a /management router
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/user", h.getCurrentUser).Methods("GET")
	router.Handle("/user/permissions", middleware.RequireAuthenticated()(http.HandlerFunc(h.getPermission))).Methods("GET")
}

// PermissionDecision is the body of GET /management/user/permissions
type PermissionDecision struct {
	Permission  rbac.Permission `json:"permission"`
	Actions     []rbac.Action   `json:"actions"`
	ReferenceID *string         `json:"referenceId,omitempty"`
	Allowed     bool            `json:"allowed"`
}

// getCurrentUser handles GET /management/user
func (h *UserHandlers) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.CurrentPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, p.View())
}

// getPermission handles GET /management/user/permissions?permission=API_PLAN&actions=READ,UPDATE&referenceId=api-1
func (h *UserHandlers) getPermission(w http.ResponseWriter, r *http.Request) {
	name := httputil.ParseQueryString(r, "permission", "")
	if !httputil.RequireNonEmpty(w, name, "permission") {
		return
	}
	permission := rbac.Permission(name)
	if permission.Scope() == "" {
		httputil.WriteBadRequest(w, "unknown permission: "+name)
		return
	}

	raw := httputil.ParseQueryList(r, "actions")
	if len(raw) == 0 {
		httputil.WriteBadRequest(w, "actions is required")
		return
	}
	actions := make([]rbac.Action, 0, len(raw))
	for _, s := range raw {
		a, ok := rbac.ParseAction(s)
		if !ok {
			httputil.WriteBadRequest(w, "unknown action: "+s)
			return
		}
		actions = append(actions, a)
	}

	ref := httputil.ParseQueryOptional(r, "referenceId")
	allowed := h.HasPermission(r, permission, ref, actions...)

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"permission": name,
		"allowed":    allowed,
	}).Debug("Permission queried")

	httputil.WriteSuccess(w, PermissionDecision{
		Permission:  permission,
		Actions:     actions,
		ReferenceID: ref,
		Allowed:     allowed,
	})
}
