package analytics

import (
	"context"
	"sort"

	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/rbac"
)

// Resolver converts an organization-level analytics grant into the concrete
// practice filter an analytics query must apply. It is the one place where
// the scope engine meets the organization to practice mapping.
type Resolver struct {
	mapper  Mapper
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver over the given mapper. logger and metrics
// may be nil in tests.
func NewResolver(mapper Mapper, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		mapper:  mapper,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve computes the practice filter for one analytics request.
//
// Scope all is the only path that skips practice filtering. An organization
// grant resolves the accessible organization set, narrows it to the
// requested organization's subtree when one is named, and maps the result to
// practice ids. An empty practice list resolves to the explicit match-nothing
// marker, logged as a security event; it must never be treated as
// unrestricted. Any other scope fails closed.
func (r *Resolver) Resolve(ctx context.Context, checker *rbac.Checker, req Request) (PracticeFilter, error) {
	scope, err := checker.AccessScopeFor(rbac.ResourceAnalytics, rbac.ActionRead)
	if err != nil {
		return PracticeFilter{Kind: FilterMatchNothing}, err
	}

	if scope == rbac.ScopeAll {
		if len(req.PracticeIDs) > 0 {
			return PracticeFilter{Kind: FilterPracticeSet, PracticeIDs: sorted(req.PracticeIDs)}, nil
		}
		return PracticeFilter{Kind: FilterUnrestricted}, nil
	}

	if scope != rbac.ScopeOrganization {
		// Own-scoped analytics has no practice mapping to resolve.
		r.failClosed(checker, "analytics_scope_not_organization")
		return PracticeFilter{Kind: FilterMatchNothing}, nil
	}

	orgIDs, ok := r.organizationSet(checker, req.OrganizationID)
	if !ok {
		r.failClosed(checker, "organization_outside_accessible_set")
		return PracticeFilter{Kind: FilterMatchNothing}, nil
	}
	if len(orgIDs) == 0 {
		r.failClosed(checker, "empty_accessible_organizations")
		return PracticeFilter{Kind: FilterMatchNothing}, nil
	}

	allowed, err := r.mapper.PracticesFor(ctx, orgIDs)
	if err != nil {
		return PracticeFilter{Kind: FilterMatchNothing}, err
	}

	if len(req.PracticeIDs) > 0 {
		allowed = intersect(allowed, req.PracticeIDs)
	}

	if len(allowed) == 0 {
		// No practices mapped: zero rows, not all rows.
		r.failClosed(checker, "empty_practice_set")
		return PracticeFilter{Kind: FilterMatchNothing}, nil
	}

	return PracticeFilter{Kind: FilterPracticeSet, PracticeIDs: allowed}, nil
}

// organizationSet returns the organization ids the query may cover. A named
// organization narrows the set to its subtree and must itself be accessible.
func (r *Resolver) organizationSet(checker *rbac.Checker, organizationID string) ([]string, bool) {
	accessible := checker.AccessibleOrganizations()

	if organizationID == "" {
		ids := make([]string, 0, len(accessible))
		for id := range accessible {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, true
	}

	if _, ok := accessible[organizationID]; !ok {
		return nil, false
	}

	// The accessible set is descendant-closed, so the requested subtree is
	// exactly the accessible ids reachable from the requested org.
	subtree := checker.Hierarchy().DescendantsOf(organizationID)
	ids := make([]string, 0, len(subtree))
	for id := range subtree {
		if _, ok := accessible[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, true
}

func (r *Resolver) failClosed(checker *rbac.Checker, reason string) {
	if r.metrics != nil {
		r.metrics.FailClosedTotal.WithLabelValues(reason).Inc()
	}
	if r.logger != nil {
		r.logger.Security("analytics_fail_closed", map[string]interface{}{
			"user_id": checker.UserContext().UserID(),
			"reason":  reason,
		})
	}
}

func sorted(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func intersect(allowed, requested []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, id := range requested {
		if _, ok := set[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
