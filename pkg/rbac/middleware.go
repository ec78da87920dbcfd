package rbac

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/practicehub/practicehub/pkg/auth"
	"github.com/practicehub/practicehub/pkg/contextkeys"
	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/orgs"
)

// Trusted headers set by the authenticating gateway. Authentication itself
// happens upstream; by the time a request reaches this service the identity
// headers are verified.
const (
	HeaderUserID     = "X-Practicehub-User-Id"
	HeaderUsername   = "X-Practicehub-User-Name"
	HeaderSuperAdmin = "X-Practicehub-Super-Admin"
	HeaderOrgID      = "X-Practicehub-Org-Id"
	HeaderRequestID  = "X-Request-Id"
)

// Middleware wires identity extraction, per-request user context
// construction, and permission gates into the HTTP stack.
type Middleware struct {
	builder   *ContextBuilder
	hierarchy *orgs.HierarchyCache
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewMiddleware creates the RBAC middleware stack
func NewMiddleware(builder *ContextBuilder, hierarchy *orgs.HierarchyCache, logger *observability.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{
		builder:   builder,
		hierarchy: hierarchy,
		logger:    logger,
		metrics:   metrics,
	}
}

// RequestID assigns a request ID if the gateway did not send one
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity extracts the verified principal from the gateway headers. Requests
// without a user ID are rejected before any handler runs.
func (m *Middleware) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		identity := auth.Identity{
			UserID:                userID,
			Username:              r.Header.Get(HeaderUsername),
			IsSuperAdmin:          r.Header.Get(HeaderSuperAdmin) == "true",
			CurrentOrganizationID: r.Header.Get(HeaderOrgID),
		}

		ctx := contextkeys.WithIdentity(r.Context(), &identity)
		ctx = contextkeys.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserContext builds the immutable per-request user context from the
// identity and stashes it for downstream handlers. Runs after Identity.
func (m *Middleware) UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil || !identity.Authenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		uc, err := m.builder.Build(r.Context(), *identity)
		if err != nil {
			m.logger.WithError(err).WithField("user_id", identity.UserID).Error("failed to build user context")
			writeError(w, http.StatusInternalServerError, "authorization context unavailable")
			return
		}

		ctx := contextkeys.WithUserContext(r.Context(), uc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on a permission. The check is existence
// plus organization reachability when the grant is organization-scoped;
// per-resource double checks belong to the scoped services behind the route.
func (m *Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checker := m.CheckerFor(r.Context())
			if checker == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			orgID := checker.UserContext().CurrentOrganizationID()
			if !checker.HasPermission(name, orgID) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a route on holding at least one of the named
// permissions.
func (m *Middleware) RequireAnyPermission(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checker := m.CheckerFor(r.Context())
			if checker == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !checker.HasAnyPermission(names...) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin gates a route to super administrators only
func (m *Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checker := m.CheckerFor(r.Context())
		if checker == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if !checker.IsSuperAdmin() {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CheckerFor builds a checker from the request's user context and the
// current hierarchy snapshot. Returns nil when no user context is present.
func (m *Middleware) CheckerFor(ctx context.Context) *Checker {
	uc := UserContextFromContext(ctx)
	if uc == nil {
		return nil
	}
	return NewChecker(uc, m.hierarchy.Current(), m.logger, m.metrics)
}

// IdentityFromContext retrieves the verified identity, or nil
func IdentityFromContext(ctx context.Context) *auth.Identity {
	if v, ok := ctx.Value(contextkeys.IdentityKey).(*auth.Identity); ok {
		return v
	}
	return nil
}

// UserContextFromContext retrieves the per-request user context, or nil
func UserContextFromContext(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(contextkeys.UserContextKey).(*UserContext); ok {
		return v
	}
	return nil
}

// OrganizationAdminAccess resolves how far the caller's organizations:manage
// grant reaches, for the organization administration surface. It is an
// orgs.AccessDeciderFunc: scope all reaches everything, organization scope
// reaches the accessible set, anything narrower reaches nothing.
func (m *Middleware) OrganizationAdminAccess(ctx context.Context) (orgs.AdminAccess, error) {
	checker := m.CheckerFor(ctx)
	if checker == nil {
		return orgs.AdminAccess{}, &NoAccessError{Resource: ResourceOrganizations, Action: ActionManage}
	}

	scope, err := checker.AccessScopeFor(ResourceOrganizations, ActionManage)
	if err != nil {
		return orgs.AdminAccess{}, err
	}

	switch scope {
	case ScopeAll:
		return orgs.AdminAccess{All: true}, nil
	case ScopeOrganization:
		return orgs.AdminAccess{Accessible: checker.AccessibleOrganizations()}, nil
	default:
		// Own scope has no meaning for organizations; allow nothing.
		return orgs.AdminAccess{}, nil
	}
}

// WriteAuthzError maps authorization errors onto HTTP responses. Resources
// outside the caller's scope read as not found so their existence is not
// leaked.
func WriteAuthzError(w http.ResponseWriter, err error) {
	switch {
	case IsResourceOutOfScope(err):
		writeError(w, http.StatusNotFound, "not found")
	case IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, "insufficient permissions")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
