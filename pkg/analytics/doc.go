// Package analytics resolves organization-level security grants into the
// practice identifier filters the analytics data store needs for row-level
// filtering.
//
// Analytics rows are keyed by practice, not organization. The Resolver
// bridges the gap: it takes the caller's resolved access scope, expands the
// requested organization to its accessible subtree, and maps those
// organizations to practice ids through the Mapper.
//
// The resolution fails closed at every turn. A request for an organization
// outside the caller's accessible set, an own-scoped grant, or an
// organization subtree with no practices mapped all yield the explicit
// match-nothing marker: the query layer must return zero rows, never fall
// back to an unfiltered query. Only scope all skips practice filtering.
//
//	resolver := analytics.NewResolver(mapper, logger, metrics)
//	filter, err := resolver.Resolve(ctx, checker, analytics.Request{OrganizationID: orgID})
//	if err != nil {
//		// no analytics permission at all
//	}
//	if filter.MatchesNothing() {
//		return emptyReport, nil
//	}
//
// The organization to practice mapping is read-heavy and slow-changing, so
// CachedMapper layers an in-process expiring LRU and Redis in front of the
// database read.
package analytics
