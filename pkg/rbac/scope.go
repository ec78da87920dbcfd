package rbac

import "sort"

// FilterKind is the shape of predicate the persistence layer must apply
type FilterKind string

const (
	// FilterUnrestricted applies no restriction (scope all)
	FilterUnrestricted FilterKind = "unrestricted"
	// FilterOrganizationSet restricts rows to a set of organization ids
	FilterOrganizationSet FilterKind = "organization_set"
	// FilterOwnerOnly restricts rows to those owned by the user
	FilterOwnerOnly FilterKind = "owner_only"
	// FilterMatchNothing matches zero rows. This is the fail-closed result:
	// it must never degrade into an unfiltered query.
	FilterMatchNothing FilterKind = "match_nothing"
)

// QueryFilter is the contract between the scope engine and the query layer:
// the predicate a resolved scope requires.
type QueryFilter struct {
	Kind            FilterKind `json:"kind"`
	OrganizationIDs []string   `json:"organization_ids,omitempty"`
	OwnerID         string     `json:"owner_id,omitempty"`
}

// Unrestricted reports whether the filter applies no restriction
func (f QueryFilter) Unrestricted() bool {
	return f.Kind == FilterUnrestricted
}

// MatchesNothing reports whether the filter excludes every row
func (f QueryFilter) MatchesNothing() bool {
	return f.Kind == FilterMatchNothing
}

// ResolveFilter turns a resolved access scope into the predicate the
// persistence layer must apply.
//
// Fail-closed rule: when scope is organization but the accessible
// organization set resolves to empty, the result is match-nothing, never
// unrestricted. An empty filter silently widening into an unfiltered query
// is the one failure mode this subsystem exists to prevent.
func (c *Checker) ResolveFilter(scope AccessScope) QueryFilter {
	switch scope {
	case ScopeAll:
		return QueryFilter{Kind: FilterUnrestricted}

	case ScopeOrganization:
		accessible := c.AccessibleOrganizations()
		if len(accessible) == 0 {
			c.failClosed("empty_accessible_organizations")
			return QueryFilter{Kind: FilterMatchNothing}
		}

		ids := make([]string, 0, len(accessible))
		for id := range accessible {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return QueryFilter{Kind: FilterOrganizationSet, OrganizationIDs: ids}

	case ScopeOwn:
		if c.userCtx.UserID() == "" {
			c.failClosed("empty_user_id")
			return QueryFilter{Kind: FilterMatchNothing}
		}
		return QueryFilter{Kind: FilterOwnerOnly, OwnerID: c.userCtx.UserID()}

	default:
		// Scope none and anything unrecognized fail closed.
		c.failClosed("scope_none")
		return QueryFilter{Kind: FilterMatchNothing}
	}
}

// failClosed records a fail-closed resolution as a security-relevant event
func (c *Checker) failClosed(reason string) {
	if c.metrics != nil {
		c.metrics.FailClosedTotal.WithLabelValues(reason).Inc()
	}
	if c.logger != nil {
		c.logger.Security("scope_fail_closed", map[string]interface{}{
			"user_id": c.userCtx.UserID(),
			"reason":  reason,
		})
	}
}
