package rbac

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/practicehub/practicehub/pkg/auth"
	"github.com/practicehub/practicehub/pkg/observability"
)

// UserContext is the immutable per-request snapshot of a principal: the
// flattened permission set, the organizations the user belongs to, the
// subset they administer, and the currently selected organization. It is
// built once per authenticated request and never mutated afterwards, which
// is what makes concurrent reads from multiple goroutines safe with zero
// synchronization.
type UserContext struct {
	userID       string
	superAdmin   bool
	currentOrgID string
	permissions  map[string]Permission
	memberOrgs   map[string]struct{}
	adminOrgs    map[string]struct{}
	builtAt      time.Time
}

// UserID returns the principal's user id
func (uc *UserContext) UserID() string {
	return uc.userID
}

// IsSuperAdmin reports the super-admin flag
func (uc *UserContext) IsSuperAdmin() bool {
	return uc.superAdmin
}

// CurrentOrganizationID returns the organization selected for this session,
// or empty when none is selected.
func (uc *UserContext) CurrentOrganizationID() string {
	return uc.currentOrgID
}

// HoldsPermission reports whether the flattened permission set contains the
// named permission.
func (uc *UserContext) HoldsPermission(name string) bool {
	_, ok := uc.permissions[name]
	return ok
}

// PermissionNames returns the sorted names of every held permission
func (uc *UserContext) PermissionNames() []string {
	names := make([]string, 0, len(uc.permissions))
	for name := range uc.permissions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemberOrganizationIDs returns the ids of organizations the user belongs to
// directly.
func (uc *UserContext) MemberOrganizationIDs() []string {
	ids := make([]string, 0, len(uc.memberOrgs))
	for id := range uc.memberOrgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsMemberOf reports direct membership in the organization
func (uc *UserContext) IsMemberOf(orgID string) bool {
	_, ok := uc.memberOrgs[orgID]
	return ok
}

// AdministersOrganization reports whether the user holds an org-admin role
// in the organization.
func (uc *UserContext) AdministersOrganization(orgID string) bool {
	_, ok := uc.adminOrgs[orgID]
	return ok
}

// AdministersAnyOrganization reports whether the user holds an org-admin
// role anywhere.
func (uc *UserContext) AdministersAnyOrganization() bool {
	return len(uc.adminOrgs) > 0
}

// BuiltAt returns the snapshot construction time
func (uc *UserContext) BuiltAt() time.Time {
	return uc.builtAt
}

// AuthorizationRows is the raw, already-fetched data the builder flattens.
// The builder itself performs no I/O, which keeps it pure and testable.
type AuthorizationRows struct {
	Assignments []UserRoleAssignment
	Roles       map[string]Role // keyed by role id
	Memberships []Membership
}

// BuildUserContext assembles the immutable snapshot for one verified
// principal. Inactive or expired assignments are dropped; each surviving
// role's permission set is flattened into a deduplicated collection keyed by
// permission name; membership and admin-org sets are computed from the rows.
//
// An unknown or inactive user simply yields an empty-permission context; the
// denial happens downstream, fail-closed, not here.
func BuildUserContext(identity auth.Identity, rows AuthorizationRows, now time.Time) *UserContext {
	uc := &UserContext{
		userID:       identity.UserID,
		superAdmin:   identity.IsSuperAdmin,
		currentOrgID: identity.CurrentOrganizationID,
		permissions:  make(map[string]Permission),
		memberOrgs:   make(map[string]struct{}),
		adminOrgs:    make(map[string]struct{}),
		builtAt:      now,
	}

	for _, m := range rows.Memberships {
		if m.IsActive {
			uc.memberOrgs[m.OrganizationID] = struct{}{}
		}
	}

	for _, assignment := range rows.Assignments {
		if !assignment.Effective(now) {
			continue
		}

		role, ok := rows.Roles[assignment.RoleID]
		if !ok || !role.IsActive {
			continue
		}

		for _, p := range role.Permissions {
			uc.permissions[p.Name()] = p
		}

		if role.IsOrgAdmin && assignment.OrganizationID != nil {
			uc.adminOrgs[*assignment.OrganizationID] = struct{}{}
		}

		// An org-scoped assignment implies membership even without an
		// explicit membership row.
		if assignment.OrganizationID != nil {
			uc.memberOrgs[*assignment.OrganizationID] = struct{}{}
		}
	}

	return uc
}

// ContextBuilder fetches a principal's authorization rows and assembles the
// per-request UserContext. Fetching honors the caller's context deadline;
// the flattening itself is pure.
type ContextBuilder struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewContextBuilder creates a context builder over the RBAC store
func NewContextBuilder(store *Store, logger *observability.Logger, metrics *observability.Metrics) *ContextBuilder {
	return &ContextBuilder{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Build loads the raw rows for the identity and flattens them into an
// immutable UserContext.
func (b *ContextBuilder) Build(ctx context.Context, identity auth.Identity) (*UserContext, error) {
	start := time.Now()

	rows, err := b.store.LoadAuthorizationRows(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization rows for user %s: %w", identity.UserID, err)
	}

	uc := BuildUserContext(identity, rows, time.Now())

	if b.metrics != nil {
		b.metrics.ContextBuildDuration.Observe(time.Since(start).Seconds())
	}

	return uc, nil
}
