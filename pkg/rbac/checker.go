package rbac

import (
	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/orgs"
)

// Checker evaluates permission and scope queries over one UserContext and
// one hierarchy snapshot. Every method is a pure in-memory computation over
// immutable inputs; a Checker is safe for concurrent use and is meant to be
// constructed per request and discarded with it.
type Checker struct {
	userCtx   *UserContext
	hierarchy *orgs.Hierarchy
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewChecker creates a checker for one request. logger and metrics may be
// nil in tests.
func NewChecker(userCtx *UserContext, hierarchy *orgs.Hierarchy, logger *observability.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{
		userCtx:   userCtx,
		hierarchy: hierarchy,
		logger:    logger,
		metrics:   metrics,
	}
}

// UserContext returns the snapshot the checker evaluates against
func (c *Checker) UserContext() *UserContext {
	return c.userCtx
}

// Hierarchy returns the organization snapshot the checker resolves against
func (c *Checker) Hierarchy() *orgs.Hierarchy {
	return c.hierarchy
}

// IsSuperAdmin reports the super-admin flag
func (c *Checker) IsSuperAdmin() bool {
	return c.userCtx.IsSuperAdmin()
}

// IsOrganizationAdmin reports whether the user administers the given
// organization, or any organization when orgID is empty. Super-admins
// administer everything.
func (c *Checker) IsOrganizationAdmin(orgID string) bool {
	if c.userCtx.IsSuperAdmin() {
		return true
	}
	if orgID == "" {
		return c.userCtx.AdministersAnyOrganization()
	}
	return c.userCtx.AdministersOrganization(orgID)
}

// AccessibleOrganizations returns the user's member organizations plus every
// descendant of each.
func (c *Checker) AccessibleOrganizations() map[string]struct{} {
	return c.hierarchy.AccessibleOrganizations(c.userCtx.MemberOrganizationIDs())
}

// OrganizationAccessible reports whether the organization is within the
// user's accessible set.
func (c *Checker) OrganizationAccessible(orgID string) bool {
	if c.userCtx.IsSuperAdmin() {
		return true
	}
	_, ok := c.AccessibleOrganizations()[orgID]
	return ok
}

// HasPermission reports whether the user holds the named permission,
// optionally constrained to an organization. For an organization-scoped
// permission a non-empty organizationID must be within the user's
// accessible set.
//
// Sharp edge: when organizationID is empty for an organization-scoped
// permission the check passes on permission existence alone. Callers that
// operate on a concrete resource must go through ScopedGuard, which always
// re-validates the resource's actual organization.
func (c *Checker) HasPermission(name string, organizationID string) bool {
	if c.userCtx.IsSuperAdmin() {
		c.recordBypass(name)
		return true
	}

	p, err := ParsePermission(name)
	if err != nil {
		// Malformed names never grant anything.
		return false
	}

	if !c.userCtx.HoldsPermission(name) {
		return false
	}

	if p.Scope == ScopeOrganization && organizationID != "" {
		return c.OrganizationAccessible(organizationID)
	}

	return true
}

// HasAnyPermission reports whether the user holds at least one of the named
// permissions.
func (c *Checker) HasAnyPermission(names ...string) bool {
	for _, name := range names {
		if c.HasPermission(name, "") {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the user holds every named permission
func (c *Checker) HasAllPermissions(names ...string) bool {
	for _, name := range names {
		if !c.HasPermission(name, "") {
			return false
		}
	}
	return true
}

// AccessScopeFor returns the widest scope the user holds for the resource
// and action. A super-admin short-circuits to all before any evaluation.
// When the user holds no matching permission at all the error is a
// *NoAccessError: callers must treat it as access denial, which is distinct
// from a computed scope of none.
func (c *Checker) AccessScopeFor(resource Resource, action Action) (AccessScope, error) {
	if c.userCtx.IsSuperAdmin() {
		c.recordBypass(PermissionName(resource, action, ScopeAll))
		c.recordScope(ScopeAll)
		return ScopeAll, nil
	}

	widest := ScopeNone
	for _, scope := range []AccessScope{ScopeAll, ScopeOrganization, ScopeOwn} {
		if c.userCtx.HoldsPermission(PermissionName(resource, action, scope)) {
			widest = scope
			break
		}
	}

	if widest == ScopeNone {
		c.recordDecision(resource, action, "denied")
		return ScopeNone, &NoAccessError{Resource: resource, Action: action}
	}

	c.recordDecision(resource, action, "granted")
	c.recordScope(widest)
	return widest, nil
}

// recordBypass logs and counts a super-admin short-circuit. Bypasses are
// logged distinctly so audits can separate them from ordinary grants.
func (c *Checker) recordBypass(permission string) {
	if c.metrics != nil {
		c.metrics.SuperAdminBypassesTotal.Inc()
	}
	if c.logger != nil {
		c.logger.Security("superadmin_bypass", map[string]interface{}{
			"user_id":    c.userCtx.UserID(),
			"permission": permission,
		})
	}
}

func (c *Checker) recordDecision(resource Resource, action Action, decision string) {
	if c.metrics != nil {
		c.metrics.PermissionChecksTotal.WithLabelValues(string(resource), string(action), decision).Inc()
	}
}

func (c *Checker) recordScope(scope AccessScope) {
	if c.metrics != nil {
		c.metrics.AccessScopeResolutions.WithLabelValues(string(scope)).Inc()
	}
}
