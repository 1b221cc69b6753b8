package rbac

import (
	"context"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/observability"
)

// PermissionChecker answers authorization questions about the current request
type PermissionChecker struct {
	evaluator PermissionEvaluator
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewPermissionChecker creates a new permission checker. logger and metrics may be nil.
func NewPermissionChecker(evaluator PermissionEvaluator, logger *observability.Logger, metrics *observability.Metrics) *PermissionChecker {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PermissionChecker{
		evaluator: evaluator,
		logger:    logger,
		metrics:   metrics,
	}
}

// IsAdminPrincipal reports whether the principal holds a global admin authority
func IsAdminPrincipal(p *auth.Principal) bool {
	return p != nil && p.HasAnyAuthority(ManagementAdmin, PortalAdmin)
}

// IsAdmin reports whether the request principal is a global admin
func (c *PermissionChecker) IsAdmin(sc *auth.SecurityContext) bool {
	p, ok := sc.Current()
	return ok && IsAdminPrincipal(p)
}

// HasPermission decides in order: anonymous requests are denied, global
// admins are allowed, everyone else is delegated to the evaluator. Evaluator
// errors deny.
func (c *PermissionChecker) HasPermission(ctx context.Context, sc *auth.SecurityContext, desc PermissionDescriptor, referenceID *string) bool {
	p, ok := sc.Current()
	if !ok {
		c.metrics.RecordPermissionDecision(observability.DecisionPathUnauthenticated, false)
		return false
	}

	if IsAdminPrincipal(p) {
		c.metrics.RecordPermissionDecision(observability.DecisionPathAdmin, true)
		return true
	}

	allowed, err := c.evaluator.HasPermission(ctx, p.SubjectID(), desc.Permission, referenceID, desc.Actions...)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"subject":    p.SubjectID(),
			"permission": string(desc.Permission),
		}).WithError(err).Error("Permission evaluation failed")
		allowed = false
	}

	c.metrics.RecordPermissionDecision(observability.DecisionPathEvaluator, allowed)
	return allowed
}
