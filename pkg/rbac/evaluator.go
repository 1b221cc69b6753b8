package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// PermissionEvaluator decides fine-grained permissions for a non-admin subject
type PermissionEvaluator interface {
	HasPermission(ctx context.Context, subjectID string, permission Permission, referenceID *string, actions ...Action) (bool, error)
}

// StoreEvaluator evaluates permissions against memberships and role
// definitions held in a MembershipStore.
type StoreEvaluator struct {
	store  MembershipStore
	logger *observability.Logger
}

// NewStoreEvaluator creates a new store backed evaluator
func NewStoreEvaluator(store MembershipStore, logger *observability.Logger) *StoreEvaluator {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &StoreEvaluator{store: store, logger: logger}
}

// referenceFor maps a permission scope and optional reference id to the
// membership reference to look up. Scopes below the environment need an
// explicit reference.
func referenceFor(scope RoleScope, referenceID *string) (ReferenceType, string, bool) {
	var ref string
	if referenceID != nil {
		ref = *referenceID
	}

	switch scope {
	case ScopeManagement, ScopePortal:
		if ref == "" {
			ref = DefaultReferenceID
		}
		return ReferenceType(scope), ref, true
	case ScopeAPI, ScopeApplication, ScopeGroup:
		if ref == "" {
			return "", "", false
		}
		return ReferenceType(scope), ref, true
	default:
		return "", "", false
	}
}

// HasPermission allows when any role the subject holds on the reference
// grants every requested action. Requesting no action is denied.
func (e *StoreEvaluator) HasPermission(ctx context.Context, subjectID string, permission Permission, referenceID *string, actions ...Action) (bool, error) {
	if len(actions) == 0 {
		return false, nil
	}

	scope := permission.Scope()
	if scope == "" {
		return false, fmt.Errorf("unknown permission %q", permission)
	}

	refType, refID, ok := referenceFor(scope, referenceID)
	if !ok {
		e.logger.WithField("permission", string(permission)).Debug("Permission needs a reference id")
		return false, nil
	}

	roles, err := e.store.FindRoles(ctx, refType, []string{refID}, subjectID, scope)
	if err != nil {
		return false, fmt.Errorf("failed to load memberships: %w", err)
	}

	for _, role := range roles {
		def, err := e.store.GetRoleDefinition(ctx, role.Scope, role.Name)
		if errors.Is(err, ErrRoleNotFound) {
			e.logger.WithField("role", string(role.Authority())).Debug("Membership references an unknown role")
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to load role definition: %w", err)
		}
		if def.Grants(permission, actions...) {
			return true, nil
		}
	}

	return false, nil
}
