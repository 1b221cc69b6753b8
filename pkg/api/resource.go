package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

// MaxImageSize is the largest accepted decoded image, in bytes
const MaxImageSize = 50_000

// ErrImageTooBig is returned by CheckImageSize
var ErrImageTooBig = errors.New("the image is too big")

// Resource gives handlers access to the authenticated principal of a request
// and to permission decisions about it.
type Resource struct {
	checker *rbac.PermissionChecker
}

// NewResource creates a resource base backed by checker
func NewResource(checker *rbac.PermissionChecker) *Resource {
	return &Resource{checker: checker}
}

// CurrentPrincipal returns the principal published by the auth middleware
func (res *Resource) CurrentPrincipal(r *http.Request) (*auth.Principal, bool) {
	return auth.PrincipalFrom(r.Context())
}

// CurrentUserOrEmpty returns the subject id, or "" for anonymous requests
func (res *Resource) CurrentUserOrEmpty(r *http.Request) string {
	if p, ok := res.CurrentPrincipal(r); ok {
		return p.SubjectID()
	}
	return ""
}

// IsAuthenticated reports whether the request carries a principal
func (res *Resource) IsAuthenticated(r *http.Request) bool {
	_, ok := res.CurrentPrincipal(r)
	return ok
}

// IsAdmin reports whether the principal holds MANAGEMENT:ADMIN or PORTAL:ADMIN
func (res *Resource) IsAdmin(r *http.Request) bool {
	return res.checker.IsAdmin(auth.SecurityContextFrom(r.Context()))
}

// HasPermission is true for authenticated admins, and otherwise when the
// evaluator grants every action on permission for referenceID.
func (res *Resource) HasPermission(r *http.Request, permission rbac.Permission, referenceID *string, actions ...rbac.Action) bool {
	sc := auth.SecurityContextFrom(r.Context())
	return res.checker.HasPermission(r.Context(), sc, rbac.NewPermissionDescriptor(permission, actions...), referenceID)
}

// CheckImageSize rejects base64 pictures whose approximate decoded size is
// above MaxImageSize. An empty picture is accepted.
func (res *Resource) CheckImageSize(picture string) error {
	if picture == "" {
		return nil
	}
	if 3*len(picture)/4 > MaxImageSize {
		return ErrImageTooBig
	}
	return nil
}
