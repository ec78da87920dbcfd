package analytics

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/rbac"
)

// Handlers exposes the practice scope resolution to reporting consumers.
// The BI layer calls this before running a report and applies the returned
// filter to its practice-keyed row sets.
type Handlers struct {
	resolver   *Resolver
	middleware *rbac.Middleware
}

// NewHandlers creates analytics handlers
func NewHandlers(resolver *Resolver, middleware *rbac.Middleware) *Handlers {
	return &Handlers{resolver: resolver, middleware: middleware}
}

// RegisterRoutes registers the analytics routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analytics/practice-scope", h.PracticeScope).Methods("GET")
}

// PracticeScope resolves the caller's analytics visibility. Query
// parameters: organization_id narrows to one accessible subtree,
// practice_id (repeatable) intersects with the caller's allowed set.
//
// The match-nothing kind in the response is a hard zero-rows contract for
// the consumer, never an invitation to skip filtering.
func (h *Handlers) PracticeScope(w http.ResponseWriter, r *http.Request) {
	checker := h.middleware.CheckerFor(r.Context())
	if checker == nil {
		http.Error(w, "authorization context missing", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	req := Request{
		OrganizationID: query.Get("organization_id"),
		PracticeIDs:    query["practice_id"],
	}

	filter, err := h.resolver.Resolve(r.Context(), checker, req)
	if err != nil {
		if rbac.IsPermissionDenied(err) {
			rbac.WriteAuthzError(w, err)
			return
		}
		http.Error(w, "failed to resolve practice scope", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(filter)
}
