package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/audit"
)

// Handlers provides the role administration HTTP surface
type Handlers struct {
	store       *Store
	middleware  *Middleware
	auditLogger audit.Logger
}

// NewHandlers creates role administration handlers. auditLogger may be nil.
func NewHandlers(store *Store, middleware *Middleware, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Handlers{
		store:       store,
		middleware:  middleware,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers the role administration routes. The router is
// expected to already carry the identity and user-context middleware.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rbac/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/rbac/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.GetRole).Methods("GET")
	router.HandleFunc("/rbac/roles/{id}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/rbac/roles/{id}", h.DeactivateRole).Methods("DELETE")

	router.HandleFunc("/rbac/users/{id}/roles", h.AssignRole).Methods("POST")
	router.HandleFunc("/rbac/users/{id}/roles", h.GetUserAssignments).Methods("GET")
	router.HandleFunc("/rbac/users/{id}/roles/{assignment_id}", h.RevokeAssignment).Methods("DELETE")

	router.HandleFunc("/rbac/check", h.CheckPermission).Methods("POST")
	router.HandleFunc("/rbac/permissions", h.ListPermissions).Methods("GET")
}

// requireRoleManagement verifies the caller may manage roles in the given
// organization. An empty organization id means a global role, which only
// super admins and holders of roles:manage:all may touch.
func (h *Handlers) requireRoleManagement(w http.ResponseWriter, r *http.Request, organizationID *string) *Checker {
	checker := h.middleware.CheckerFor(r.Context())
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return nil
	}

	orgID := ""
	if organizationID != nil {
		orgID = *organizationID
	}

	if orgID == "" {
		if !checker.HasPermission(PermissionName(ResourceRoles, ActionManage, ScopeAll), "") {
			writeError(w, http.StatusForbidden, "global role management requires roles:manage:all")
			return nil
		}
		return checker
	}

	if !checker.HasPermission(PermissionName(ResourceRoles, ActionManage, ScopeOrganization), orgID) {
		writeError(w, http.StatusForbidden, "insufficient permission to manage roles in this organization")
		return nil
	}
	return checker
}

// CreateRole creates a custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name           string   `json:"name"`
		DisplayName    string   `json:"display_name"`
		Description    string   `json:"description"`
		OrganizationID *string  `json:"organization_id,omitempty"`
		IsOrgAdmin     bool     `json:"is_org_admin"`
		Permissions    []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "name and display_name are required")
		return
	}

	checker := h.requireRoleManagement(w, r, req.OrganizationID)
	if checker == nil {
		return
	}

	permissions := make([]Permission, 0, len(req.Permissions))
	for _, name := range req.Permissions {
		p, err := ParsePermission(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		permissions = append(permissions, p)
	}

	userID := checker.UserContext().UserID()
	role := &Role{
		ID:             uuid.NewString(),
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
		IsOrgAdmin:     req.IsOrgAdmin,
		Permissions:    permissions,
		IsActive:       true,
		CreatedBy:      &userID,
	}

	if err := h.store.CreateRole(ctx, role); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logRoleEvent(ctx, audit.EventTypeRoleChange, userID, role.ID, map[string]interface{}{
		"operation": "create",
		"name":      role.Name,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(role)
}

// ListRoles lists active roles visible in an organization, plus global roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checker := h.middleware.CheckerFor(ctx)
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return
	}

	var organizationID *string
	if orgID := r.URL.Query().Get("organization_id"); orgID != "" {
		if !checker.OrganizationAccessible(orgID) && !checker.IsSuperAdmin() {
			writeError(w, http.StatusForbidden, "organization not accessible")
			return
		}
		organizationID = &orgID
	}

	roles, err := h.store.ListRoles(ctx, organizationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(roles)
}

// GetRole retrieves one role. Roles scoped to an organization outside the
// caller's accessible set read as not found.
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID := mux.Vars(r)["id"]

	checker := h.middleware.CheckerFor(ctx)
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return
	}

	role, err := h.store.GetRole(ctx, roleID)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	if role.OrganizationID == nil {
		// Global roles are readable under any roles:read grant.
		if _, err := checker.AccessScopeFor(ResourceRoles, ActionRead); err != nil {
			writeError(w, http.StatusForbidden, "insufficient permission to read roles")
			return
		}
	} else {
		guard := NewScopedGuard(checker)
		ref := ResourceRef{ID: role.ID, OrganizationID: *role.OrganizationID}
		if err := guard.VerifyOperation(ResourceRoles, ActionRead, ref); err != nil {
			WriteAuthzError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(role)
}

// UpdateRole updates a custom role's display fields and permission list
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID := mux.Vars(r)["id"]

	role, err := h.store.GetRole(ctx, roleID)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	if role.IsSystemRole {
		writeError(w, http.StatusForbidden, "system roles cannot be modified")
		return
	}

	checker := h.requireRoleManagement(w, r, role.OrganizationID)
	if checker == nil {
		return
	}

	var req struct {
		DisplayName string   `json:"display_name"`
		Description string   `json:"description"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	permissions := make([]Permission, 0, len(req.Permissions))
	for _, name := range req.Permissions {
		p, err := ParsePermission(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		permissions = append(permissions, p)
	}

	if req.DisplayName != "" {
		role.DisplayName = req.DisplayName
	}
	role.Description = req.Description
	role.Permissions = permissions

	if err := h.store.UpdateRole(ctx, role); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logRoleEvent(ctx, audit.EventTypeRoleChange, checker.UserContext().UserID(), role.ID, map[string]interface{}{
		"operation": "update",
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(role)
}

// DeactivateRole soft-deletes a custom role
func (h *Handlers) DeactivateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleID := mux.Vars(r)["id"]

	role, err := h.store.GetRole(ctx, roleID)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	if role.IsSystemRole {
		writeError(w, http.StatusForbidden, "system roles cannot be deactivated")
		return
	}

	checker := h.requireRoleManagement(w, r, role.OrganizationID)
	if checker == nil {
		return
	}

	if err := h.store.DeactivateRole(ctx, roleID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logRoleEvent(ctx, audit.EventTypeRoleChange, checker.UserContext().UserID(), roleID, map[string]interface{}{
		"operation": "deactivate",
	})

	w.WriteHeader(http.StatusNoContent)
}

// AssignRole grants a role to a user, optionally scoped to an organization
// and with an expiry
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["id"]

	var req struct {
		RoleID         string     `json:"role_id"`
		OrganizationID *string    `json:"organization_id,omitempty"`
		ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "role_id is required")
		return
	}

	role, err := h.store.GetRole(ctx, req.RoleID)
	if err != nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}

	checker := h.requireRoleManagement(w, r, role.OrganizationID)
	if checker == nil {
		return
	}

	// The assignment's own organization decides where membership lands, so
	// it gets the same scrutiny as the role's. Managers below roles:manage:all
	// may only grant into their accessible subtree, and never unscoped.
	if !checker.HasPermission(PermissionName(ResourceRoles, ActionManage, ScopeAll), "") {
		if req.OrganizationID == nil {
			writeError(w, http.StatusForbidden, "unscoped assignments require roles:manage:all")
			return
		}
	}
	if req.OrganizationID != nil && !checker.OrganizationAccessible(*req.OrganizationID) {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	grantedBy := checker.UserContext().UserID()
	assignment := &UserRoleAssignment{
		ID:             uuid.NewString(),
		UserID:         userID,
		RoleID:         req.RoleID,
		OrganizationID: req.OrganizationID,
		GrantedBy:      &grantedBy,
		ExpiresAt:      req.ExpiresAt,
	}

	if err := h.store.AssignRole(ctx, assignment); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logRoleEvent(ctx, audit.EventTypeRoleAssignment, grantedBy, role.ID, map[string]interface{}{
		"assignee":      userID,
		"assignment_id": assignment.ID,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(assignment)
}

// GetUserAssignments lists a user's role assignments, including inactive
// and expired ones
func (h *Handlers) GetUserAssignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mux.Vars(r)["id"]

	checker := h.middleware.CheckerFor(ctx)
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return
	}

	// Users may inspect their own assignments; anyone else sees only the
	// slice their roles:read scope reaches. Organization-scoped readers get
	// the target's assignments within their accessible set, nothing else.
	var readScope AccessScope = ScopeAll
	if userID != checker.UserContext().UserID() {
		scope, err := checker.AccessScopeFor(ResourceRoles, ActionRead)
		if err != nil || scope == ScopeOwn {
			writeError(w, http.StatusForbidden, "insufficient permission to read role assignments")
			return
		}
		readScope = scope
	}

	assignments, err := h.store.GetUserAssignments(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if readScope == ScopeOrganization {
		visible := make([]UserRoleAssignment, 0, len(assignments))
		for _, a := range assignments {
			if a.OrganizationID != nil && checker.OrganizationAccessible(*a.OrganizationID) {
				visible = append(visible, a)
			}
		}
		assignments = visible
	}
	if assignments == nil {
		assignments = []UserRoleAssignment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assignments)
}

// RevokeAssignment deactivates one role assignment
func (h *Handlers) RevokeAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	assignmentID := vars["assignment_id"]

	checker := h.middleware.CheckerFor(ctx)
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return
	}
	assignment, err := h.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	// The assignment's organization is the resource being revoked. Unscoped
	// assignments carry no organization and only fall to roles:manage:all.
	ref := ResourceRef{ID: assignment.ID}
	if assignment.OrganizationID != nil {
		ref.OrganizationID = *assignment.OrganizationID
	}
	if err := NewScopedGuard(checker).VerifyOperation(ResourceRoles, ActionManage, ref); err != nil {
		WriteAuthzError(w, err)
		return
	}

	if err := h.store.RevokeAssignment(ctx, assignmentID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logRoleEvent(ctx, audit.EventTypeRoleRevocation, checker.UserContext().UserID(), "", map[string]interface{}{
		"assignment_id": assignmentID,
		"assignee":      vars["id"],
	})

	w.WriteHeader(http.StatusNoContent)
}

// CheckPermission evaluates a permission for the calling user. Intended for
// UI feature gating; services use the checker directly.
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	checker := h.middleware.CheckerFor(r.Context())
	if checker == nil {
		writeError(w, http.StatusUnauthorized, "authorization context missing")
		return
	}

	var req struct {
		Permission     string `json:"permission"`
		OrganizationID string `json:"organization_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Permission == "" {
		writeError(w, http.StatusBadRequest, "permission is required")
		return
	}

	allowed := checker.HasPermission(req.Permission, req.OrganizationID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"permission": req.Permission,
		"allowed":    allowed,
	})
}

// ListPermissions returns the permission catalog
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"permissions": DefaultCatalog().Names(),
	})
}

func (h *Handlers) logRoleEvent(ctx context.Context, eventType audit.EventType, actorID, roleID string, metadata map[string]interface{}) {
	_ = h.auditLogger.LogRoleChange(ctx, eventType, actorID, roleID, metadata)
}
