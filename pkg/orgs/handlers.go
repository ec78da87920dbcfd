package orgs

import (
	"context"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/audit"
	"github.com/practicehub/practicehub/pkg/httputil"
)

// AdminAccess describes how far the caller's organization management grant
// reaches. All means every organization; otherwise only ids in Accessible.
// The zero value allows nothing.
type AdminAccess struct {
	All        bool
	Accessible map[string]struct{}
}

// Allows reports whether the organization may be administered
func (a AdminAccess) Allows(orgID string) bool {
	if a.All {
		return true
	}
	_, ok := a.Accessible[orgID]
	return ok
}

// AccessDeciderFunc resolves the caller's administration reach from the
// request context. An error means the caller may not administer anything.
type AccessDeciderFunc func(ctx context.Context) (AdminAccess, error)

// Handlers provides the organization administration HTTP surface. Every
// operation resolves the caller's administration reach through the decider
// and treats organizations outside it as not found.
type Handlers struct {
	store       *Store
	cache       *HierarchyCache
	auditLogger audit.Logger
	decider     AccessDeciderFunc
}

// NewHandlers creates organization handlers. auditLogger may be nil; the
// decider must not be.
func NewHandlers(store *Store, cache *HierarchyCache, auditLogger audit.Logger, decider AccessDeciderFunc) *Handlers {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Handlers{store: store, cache: cache, auditLogger: auditLogger, decider: decider}
}

func (h *Handlers) adminAccess(w http.ResponseWriter, r *http.Request) (AdminAccess, bool) {
	access, err := h.decider(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "insufficient permission to manage organizations")
		return AdminAccess{}, false
	}
	return access, true
}

// RegisterRoutes registers the organization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.Create).Methods("POST")
	router.HandleFunc("/organizations", h.List).Methods("GET")
	router.HandleFunc("/organizations/{id}", h.Get).Methods("GET")
	router.HandleFunc("/organizations/{id}/parent", h.SetParent).Methods("PUT")
	router.HandleFunc("/organizations/{id}/status", h.SetStatus).Methods("PUT")
	router.HandleFunc("/organizations/{id}/descendants", h.Descendants).Methods("GET")
}

// Create creates an organization and refreshes the hierarchy snapshot
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name                 string  `json:"name"`
		DisplayName          string  `json:"display_name"`
		Description          string  `json:"description"`
		ParentOrganizationID *string `json:"parent_organization_id,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}
	if !access.All && req.ParentOrganizationID == nil {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "creating top-level organizations requires organizations:manage:all")
		return
	}

	// A parent outside the caller's reach reads the same as a missing one.
	if req.ParentOrganizationID != nil &&
		(!h.cache.Current().Contains(*req.ParentOrganizationID) || !access.Allows(*req.ParentOrganizationID)) {
		httputil.WriteBadRequest(w, "parent organization not found")
		return
	}

	org := &Organization{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		DisplayName:          req.DisplayName,
		Description:          req.Description,
		ParentOrganizationID: req.ParentOrganizationID,
		Status:               OrgStatusActive,
	}
	if org.DisplayName == "" {
		org.DisplayName = org.Name
	}

	if err := h.store.CreateOrganization(ctx, org); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.refreshAndAudit(ctx, audit.EventTypeOrgCreate, org.ID)

	httputil.WriteCreated(w, org)
}

// List returns the organizations within the caller's administration reach
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}

	organizations, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if !access.All {
		visible := make([]Organization, 0, len(organizations))
		for _, org := range organizations {
			if access.Allows(org.ID) {
				visible = append(visible, org)
			}
		}
		organizations = visible
	}

	httputil.WriteSuccess(w, organizations)
}

// Get returns one organization. Out-of-reach ids read as not found.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}

	orgID := mux.Vars(r)["id"]
	if !access.Allows(orgID) {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	org, err := h.store.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	httputil.WriteSuccess(w, org)
}

// SetParent re-parents an organization. Cyclic edits are rejected.
func (h *Handlers) SetParent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := mux.Vars(r)["id"]

	var req struct {
		ParentOrganizationID *string `json:"parent_organization_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}
	if !access.Allows(orgID) {
		httputil.WriteNotFound(w, "organization not found")
		return
	}
	if !access.All && req.ParentOrganizationID == nil {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "detaching organizations requires organizations:manage:all")
		return
	}
	if req.ParentOrganizationID != nil && !access.Allows(*req.ParentOrganizationID) {
		httputil.WriteBadRequest(w, "parent organization not found")
		return
	}

	if err := h.store.SetParent(ctx, orgID, req.ParentOrganizationID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	h.refreshAndAudit(ctx, audit.EventTypeOrgUpdate, orgID)
	httputil.WriteNoContent(w)
}

// SetStatus activates or deactivates an organization. Deactivated
// organizations drop out of the hierarchy snapshot on refresh.
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := mux.Vars(r)["id"]

	var req struct {
		Status OrgStatus `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}
	if !access.Allows(orgID) {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	switch req.Status {
	case OrgStatusActive, OrgStatusSuspended, OrgStatusDeleted:
	default:
		httputil.WriteBadRequest(w, "invalid status")
		return
	}

	if err := h.store.SetStatus(ctx, orgID, req.Status); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}

	h.refreshAndAudit(ctx, audit.EventTypeOrgUpdate, orgID)
	httputil.WriteNoContent(w)
}

// Descendants returns the ids in the subtree rooted at the organization,
// per the current hierarchy snapshot
func (h *Handlers) Descendants(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]

	access, ok := h.adminAccess(w, r)
	if !ok {
		return
	}

	snapshot := h.cache.Current()
	if !access.Allows(orgID) || !snapshot.Contains(orgID) {
		httputil.WriteNotFound(w, "organization not found")
		return
	}

	descendants := snapshot.DescendantsOf(orgID)
	ids := make([]string, 0, len(descendants))
	for id := range descendants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	httputil.WriteSuccess(w, map[string]interface{}{
		"organization_id": orgID,
		"descendants":     ids,
	})
}

func (h *Handlers) refreshAndAudit(ctx context.Context, eventType audit.EventType, orgID string) {
	// A stale snapshot self-heals on the next cron refresh; a failed
	// refresh here is logged by the cache itself.
	_ = h.cache.Refresh(ctx)

	event := audit.NewEvent(ctx, eventType, audit.DecisionGranted)
	event.OrganizationID = orgID
	_ = h.auditLogger.Log(ctx, event)
}
