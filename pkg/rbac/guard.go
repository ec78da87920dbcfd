package rbac

// ResourceRef identifies the concrete resource a service operation targets:
// its id, its owner and the organization it belongs to. Services fill it
// from the row they are about to touch.
type ResourceRef struct {
	ID             string
	OwnerID        string
	OrganizationID string
}

// ScopedGuard is the cross-cutting pattern every data-access service embeds:
// before touching storage it verifies the operation's permission and, for
// scoped grants, that the specific resource actually falls inside the
// resolved visibility set. The second check is what stops a user with
// organization scope in org A from reaching a resource in org B by guessing
// ids.
type ScopedGuard struct {
	checker *Checker
}

// NewScopedGuard creates a guard around a per-request checker
func NewScopedGuard(checker *Checker) *ScopedGuard {
	return &ScopedGuard{checker: checker}
}

// Checker exposes the underlying checker for scope/filter resolution
func (g *ScopedGuard) Checker() *Checker {
	return g.checker
}

// VerifyOperation checks the resource/action against the concrete resource.
// The widest held scope decides whether to proceed; then:
//
//   - scope all: allowed, no further check
//   - scope organization: the resource's organization must be within the
//     accessible set, otherwise *ResourceOutOfScopeError
//   - scope own: the resource's owner must be the caller, otherwise
//     *ResourceOutOfScopeError
//
// No permission at all yields *PermissionDeniedError. Out-of-scope errors
// are surfaced as not-found at the API boundary; denial errors as forbidden.
// Neither carries other tenants' data.
func (g *ScopedGuard) VerifyOperation(resource Resource, action Action, ref ResourceRef) error {
	scope, err := g.checker.AccessScopeFor(resource, action)
	if err != nil {
		return &PermissionDeniedError{
			Permission: string(resource) + ":" + string(action),
			ResourceID: ref.ID,
		}
	}

	switch scope {
	case ScopeAll:
		return nil

	case ScopeOrganization:
		if ref.OrganizationID == "" || !g.checker.OrganizationAccessible(ref.OrganizationID) {
			return &ResourceOutOfScopeError{
				ResourceID: ref.ID,
				Permission: PermissionName(resource, action, scope),
			}
		}
		return nil

	case ScopeOwn:
		if ref.OwnerID == "" || ref.OwnerID != g.checker.UserContext().UserID() {
			return &ResourceOutOfScopeError{
				ResourceID: ref.ID,
				Permission: PermissionName(resource, action, scope),
			}
		}
		return nil

	default:
		return &PermissionDeniedError{
			Permission: string(resource) + ":" + string(action),
			ResourceID: ref.ID,
		}
	}
}

// ListFilter resolves the query predicate for a list/read operation. The
// caller applies the returned filter verbatim; a match-nothing filter must
// produce zero rows.
func (g *ScopedGuard) ListFilter(resource Resource, action Action) (QueryFilter, error) {
	scope, err := g.checker.AccessScopeFor(resource, action)
	if err != nil {
		return QueryFilter{Kind: FilterMatchNothing}, &PermissionDeniedError{
			Permission: string(resource) + ":" + string(action),
		}
	}
	return g.checker.ResolveFilter(scope), nil
}
