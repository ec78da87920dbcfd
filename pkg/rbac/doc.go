// Package rbac provides scoped role-based access control for the PracticeHub platform.
//
// # Overview
//
// This package implements the authorization core: a permission catalog, an
// immutable per-request user context, a pure permission checker, scope-aware
// query filtering, and a scoped guard that services embed to double-check
// resource access. It decides both WHETHER a user may perform an operation
// and HOW MUCH data that operation may see.
//
// # Architecture
//
// The system is built from five components:
//
//  1. Permissions: atomic grants named <resource>:<action>:<scope>
//  2. Roles: named bundles of permissions, global or organization-owned
//  3. UserContext: immutable snapshot of one user's effective authorization state
//  4. Checker: pure evaluation of permissions and access scopes
//  5. ScopedGuard: per-resource double check embedded in domain services
//
// # Permission Grammar
//
// A permission name is exactly three non-empty colon-separated tokens:
//
//	work-items:read:organization
//	analytics:export:all
//	staff:update:own
//
// The third token is the access scope and must be one of the grantable
// scopes (own, organization, all). ParsePermission enforces the grammar;
// role configuration is validated when it loads, so a malformed name can
// never reach the checker.
//
// # Access Scopes
//
// Scopes form a fixed total order:
//
//	all > organization > own > none
//
//	ScopeAll          - every record in the system
//	ScopeOrganization - records in organizations reachable from the user's
//	                    memberships (own organizations plus all descendants)
//	ScopeOwn          - records the user owns
//	ScopeNone         - no access; computed result, never a grant
//
// When a user holds several grants for the same resource and action, the
// widest scope wins:
//
//	scope, err := checker.AccessScopeFor(rbac.ResourceWorkItems, rbac.ActionRead)
//	if err != nil {
//		// no grant for work-items:read at any scope
//	}
//
// # User Context
//
// BuildUserContext flattens a user's role assignments into an immutable
// snapshot: effective permission names, member organizations, and
// administered organizations. Expired and inactive assignments are dropped
// at build time. The snapshot is constructed once per request and read
// concurrently without synchronization.
//
//	rows, err := store.LoadAuthorizationRows(ctx, identity.UserID)
//	uc := rbac.BuildUserContext(identity, rows, time.Now())
//
// # Query Filtering
//
// ResolveFilter turns a resolved scope into a database predicate
// description:
//
//	scope, _ := checker.AccessScopeFor(rbac.ResourceWorkItems, rbac.ActionRead)
//	filter := checker.ResolveFilter(scope)
//	switch filter.Kind {
//	case rbac.FilterUnrestricted:   // no predicate
//	case rbac.FilterOrganizationSet: // WHERE organization_id = ANY(...)
//	case rbac.FilterOwnerOnly:      // WHERE owner_id = ...
//	case rbac.FilterMatchNothing:   // return zero rows
//	}
//
// The filter fails closed: an organization-scoped grant with an empty
// accessible-organization set produces FilterMatchNothing, never an
// unrestricted query. Every fail-closed resolution is logged as a security
// event and counted.
//
// # Scoped Guard
//
// Scope resolution alone cannot stop identifier guessing: a user with
// organization scope could fetch a record by ID from a different
// organization. ScopedGuard closes that hole by re-validating the concrete
// resource after the scope decision:
//
//	guard := rbac.NewScopedGuard(checker)
//	err := guard.VerifyOperation(rbac.ResourceWorkItems, rbac.ActionUpdate, rbac.ResourceRef{
//		ID:             item.ID,
//		OwnerID:        item.OwnerID,
//		OrganizationID: item.OrganizationID,
//	})
//
// A resource outside the caller's scope yields ResourceOutOfScopeError,
// which HTTP handlers surface as 404 so the resource's existence is not
// leaked.
//
// # Super Administrators
//
// Super administrators bypass all permission checks and always resolve to
// ScopeAll. Every bypass is logged and counted so the audit trail shows
// when elevated access was exercised.
//
// # HTTP Middleware
//
// The Middleware type wires the pieces into the request path:
//
//	mw := rbac.NewMiddleware(builder, hierarchyCache, logger, metrics)
//	router.Use(mw.RequestID, mw.Identity, mw.UserContext)
//	router.Handle("/work-items", mw.RequirePermission("work-items:create:organization")(h))
//
// # Database Schema
//
// Migrations in migrations.go create the authorization tables: organizations,
// roles, user_role_assignments, user_organizations, org_practices,
// work_items, and audit_events. Role permissions are stored as JSON arrays
// of permission names.
//
//	err := rbac.RunMigrations(ctx, db)
//	err = rbac.InitializeBuiltInRoles(ctx, store)
//
// # Related Packages
//
//   - pkg/orgs: organization hierarchy resolution
//   - pkg/analytics: organization to practice mapping for reporting queries
//   - pkg/audit: persistence of authorization events
//   - pkg/workitems: reference scoped service built on ScopedGuard
package rbac
