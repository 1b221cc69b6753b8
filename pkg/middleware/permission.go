package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/httputil"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// RequireAuthenticated rejects anonymous requests with 401
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.SecurityContextFrom(r.Context()).IsAuthenticated() {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission guards a route with a permission check. When refVar is
// set, the reference id is read from that mux path variable.
func RequirePermission(checker *rbac.PermissionChecker, desc rbac.PermissionDescriptor, refVar string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := auth.SecurityContextFrom(r.Context())
			if !sc.IsAuthenticated() {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			var ref *string
			if refVar != "" {
				if v, ok := mux.Vars(r)[refVar]; ok && v != "" {
					ref = &v
				}
			}

			if !checker.HasPermission(r.Context(), sc, desc, ref) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
