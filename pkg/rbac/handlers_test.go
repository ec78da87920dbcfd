package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/auth"
)

func setupHandlers(t *testing.T) (*mux.Router, *Store) {
	t.Helper()

	mw, store := setupMiddleware(t)
	handlers := NewHandlers(store, mw, nil)

	router := mux.NewRouter()
	router.Use(mw.RequestID, mw.Identity, mw.UserContext)
	handlers.RegisterRoutes(router)

	return router, store
}

func grantRoleManager(t *testing.T, store *Store, userID, orgID string) {
	t.Helper()

	ctx := context.Background()
	role := &Role{ID: "mgr-" + userID, Name: "mgr-" + userID, DisplayName: "Role Manager", IsActive: true,
		Permissions: []Permission{
			{ResourceRoles, ActionManage, ScopeOrganization},
			{ResourceRoles, ActionRead, ScopeOrganization},
		}}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	assignment := &UserRoleAssignment{ID: "mgr-assign-" + userID, UserID: userID, RoleID: role.ID, OrganizationID: &orgID}
	if err := store.AssignRole(ctx, assignment); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
}

func doJSON(t *testing.T, router *mux.Router, method, path, userID string, superAdmin bool, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(HeaderUserID, userID)
	if superAdmin {
		req.Header.Set(HeaderSuperAdmin, "true")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CreateRole(t *testing.T) {
	router, store := setupHandlers(t)
	grantRoleManager(t, store, "mgr-1", "org-1")

	t.Run("org manager creates org role", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/roles", "mgr-1", false, map[string]interface{}{
			"name":            "triage-nurse",
			"display_name":    "Triage Nurse",
			"organization_id": "org-1",
			"permissions":     []string{"work-items:read:organization", "work-items:update:own"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var role Role
		if err := json.Unmarshal(rec.Body.Bytes(), &role); err != nil {
			t.Fatalf("Failed to decode role: %v", err)
		}
		if role.ID == "" || len(role.Permissions) != 2 {
			t.Errorf("Unexpected role payload: %+v", role)
		}
	})

	t.Run("org manager cannot create global role", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/roles", "mgr-1", false, map[string]interface{}{
			"name":         "global-role",
			"display_name": "Global",
			"permissions":  []string{"work-items:read:all"},
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("org manager cannot reach other org", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/roles", "mgr-1", false, map[string]interface{}{
			"name":            "other-org-role",
			"display_name":    "Other",
			"organization_id": "org-2",
			"permissions":     []string{"work-items:read:organization"},
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("malformed permission rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/roles", "mgr-1", false, map[string]interface{}{
			"name":            "bad-role",
			"display_name":    "Bad",
			"organization_id": "org-1",
			"permissions":     []string{"work-items:read:none"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for ungrantable scope, got %d", rec.Code)
		}
	})

	t.Run("super admin creates global role", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/roles", "root-admin", true, map[string]interface{}{
			"name":         "incident-responder",
			"display_name": "Incident Responder",
			"permissions":  []string{"security:read:all"},
		})
		if rec.Code != http.StatusCreated {
			t.Errorf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandlers_SystemRoleImmutable(t *testing.T) {
	router, store := setupHandlers(t)

	ctx := context.Background()
	if err := InitializeBuiltInRoles(ctx, store); err != nil {
		t.Fatalf("InitializeBuiltInRoles failed: %v", err)
	}
	role, err := store.GetRoleByName(ctx, RoleStaffMember, nil)
	if err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}

	rec := doJSON(t, router, http.MethodPut, "/rbac/roles/"+role.ID, "root-admin", true, map[string]interface{}{
		"display_name": "Hijacked",
		"permissions":  []string{"security:manage:all"},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for system role update, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/rbac/roles/"+role.ID, "root-admin", true, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for system role delete, got %d", rec.Code)
	}
}

func TestHandlers_AssignAndRevoke(t *testing.T) {
	router, store := setupHandlers(t)
	grantRoleManager(t, store, "mgr-1", "org-1")

	ctx := context.Background()
	orgID := "org-1"
	role := &Role{ID: "role-x", Name: "role-x", DisplayName: "X", OrganizationID: &orgID, IsActive: true,
		Permissions: []Permission{{ResourceWorkItems, ActionRead, ScopeOrganization}}}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/rbac/users/staff-9/roles", "mgr-1", false, map[string]interface{}{
		"role_id":         "role-x",
		"organization_id": "org-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var assignment UserRoleAssignment
	if err := json.Unmarshal(rec.Body.Bytes(), &assignment); err != nil {
		t.Fatalf("Failed to decode assignment: %v", err)
	}

	rec = doJSON(t, router, http.MethodGet, "/rbac/users/staff-9/roles", "mgr-1", false, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var assignments []UserRoleAssignment
	if err := json.Unmarshal(rec.Body.Bytes(), &assignments); err != nil {
		t.Fatalf("Failed to decode assignments: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("Expected 1 assignment, got %d", len(assignments))
	}

	rec = doJSON(t, router, http.MethodDelete, "/rbac/users/staff-9/roles/"+assignment.ID, "mgr-1", false, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rows, err := store.GetUserAssignments(ctx, "staff-9")
	if err != nil {
		t.Fatalf("GetUserAssignments failed: %v", err)
	}
	if len(rows) != 1 || rows[0].IsActive {
		t.Errorf("Expected revoked assignment, got %+v", rows)
	}
}

func TestHandlers_AssignmentVisibility(t *testing.T) {
	router, store := setupHandlers(t)
	grantReader(t, store, "staff-1", "org-1")

	t.Run("users see their own assignments", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/users/staff-1/roles", "staff-1", false, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("others need role read permission", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/users/staff-1/roles", "staff-2", false, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})
}

func TestHandlers_CheckPermission(t *testing.T) {
	router, store := setupHandlers(t)
	grantReader(t, store, "staff-1", "org-1")

	cases := []struct {
		name       string
		userID     string
		permission string
		orgID      string
		allowed    bool
	}{
		{"granted in member org", "staff-1", "work-items:read:organization", "org-1", true},
		{"denied in other org", "staff-1", "work-items:read:organization", "org-2", false},
		{"denied without grant", "staff-1", "security:manage:all", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/rbac/check", tc.userID, false, map[string]interface{}{
				"permission":      tc.permission,
				"organization_id": tc.orgID,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}

			var result struct {
				Allowed bool `json:"allowed"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
				t.Fatalf("Failed to decode result: %v", err)
			}
			if result.Allowed != tc.allowed {
				t.Errorf("Expected allowed=%v, got %v", tc.allowed, result.Allowed)
			}
		})
	}
}

func TestHandlers_ListPermissions(t *testing.T) {
	router, _ := setupHandlers(t)

	rec := doJSON(t, router, http.MethodGet, "/rbac/permissions", "staff-1", false, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var result struct {
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if len(result.Permissions) != DefaultCatalog().Size() {
		t.Errorf("Expected %d permissions, got %d", DefaultCatalog().Size(), len(result.Permissions))
	}
}

func TestHandlers_GetRoleScopedVisibility(t *testing.T) {
	router, store := setupHandlers(t)
	grantRoleManager(t, store, "mgr-1", "org-1")

	ctx := context.Background()
	otherOrg := "org-2"
	secret := &Role{ID: "secret-role", Name: "secret-role", DisplayName: "Secret", OrganizationID: &otherOrg, IsActive: true,
		Permissions: []Permission{{ResourceWorkItems, ActionRead, ScopeOrganization}}}
	if err := store.CreateRole(ctx, secret); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	global := &Role{ID: "global-role", Name: "global-role", DisplayName: "Global", IsActive: true,
		Permissions: []Permission{{ResourceWorkItems, ActionRead, ScopeOwn}}}
	if err := store.CreateRole(ctx, global); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	t.Run("role in another tenant reads as not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/roles/secret-role", "mgr-1", false, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("no roles permission at all is forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/roles/secret-role", "staff-2", false, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("role in own organization readable", func(t *testing.T) {
		ownOrg := "org-1"
		local := &Role{ID: "local-role", Name: "local-role", DisplayName: "Local", OrganizationID: &ownOrg, IsActive: true}
		if err := store.CreateRole(ctx, local); err != nil {
			t.Fatalf("CreateRole failed: %v", err)
		}
		rec := doJSON(t, router, http.MethodGet, "/rbac/roles/local-role", "mgr-1", false, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("global role readable with any roles read grant", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/roles/global-role", "mgr-1", false, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("super admin reads any role", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/roles/secret-role", "root-1", true, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

func TestHandlers_AssignRoleOrganizationBoundary(t *testing.T) {
	router, store := setupHandlers(t)
	grantRoleManager(t, store, "mgr-1", "org-1")

	ctx := context.Background()
	orgID := "org-1"
	role := &Role{ID: "org1-role", Name: "org1-role", DisplayName: "Org1", OrganizationID: &orgID, IsActive: true,
		Permissions: []Permission{{ResourceWorkItems, ActionRead, ScopeOrganization}}}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	t.Run("assignment into another tenant reads as not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/users/staff-9/roles", "mgr-1", false, map[string]interface{}{
			"role_id":         "org1-role",
			"organization_id": "org-2",
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
		}

		rows, err := store.GetUserAssignments(ctx, "staff-9")
		if err != nil {
			t.Fatalf("GetUserAssignments failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected no assignment rows, got %d", len(rows))
		}
	})

	t.Run("unscoped assignment requires manage all", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/rbac/users/staff-9/roles", "mgr-1", false, map[string]interface{}{
			"role_id": "org1-role",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("membership is not manufactured", func(t *testing.T) {
		rows, err := store.LoadAuthorizationRows(ctx, "staff-9")
		if err != nil {
			t.Fatalf("LoadAuthorizationRows failed: %v", err)
		}
		uc := BuildUserContext(auth.Identity{UserID: "staff-9"}, rows, time.Now())
		if len(uc.MemberOrganizationIDs()) != 0 {
			t.Errorf("Expected no memberships, got %v", uc.MemberOrganizationIDs())
		}
	})
}

func TestHandlers_AssignmentScopeAcrossTenants(t *testing.T) {
	router, store := setupHandlers(t)
	grantRoleManager(t, store, "mgr-1", "org-1")

	ctx := context.Background()
	org1, org2 := "org-1", "org-2"
	for _, role := range []*Role{
		{ID: "r-one", Name: "r-one", DisplayName: "One", OrganizationID: &org1, IsActive: true},
		{ID: "r-two", Name: "r-two", DisplayName: "Two", OrganizationID: &org2, IsActive: true},
	} {
		if err := store.CreateRole(ctx, role); err != nil {
			t.Fatalf("CreateRole failed: %v", err)
		}
	}
	for _, a := range []*UserRoleAssignment{
		{ID: "a-one", UserID: "staff-9", RoleID: "r-one", OrganizationID: &org1},
		{ID: "a-two", UserID: "staff-9", RoleID: "r-two", OrganizationID: &org2},
	} {
		if err := store.AssignRole(ctx, a); err != nil {
			t.Fatalf("AssignRole failed: %v", err)
		}
	}

	t.Run("listing filters to the accessible set", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rbac/users/staff-9/roles", "mgr-1", false, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var assignments []UserRoleAssignment
		if err := json.Unmarshal(rec.Body.Bytes(), &assignments); err != nil {
			t.Fatalf("Failed to decode assignments: %v", err)
		}
		if len(assignments) != 1 || assignments[0].ID != "a-one" {
			t.Errorf("Expected only the org-1 assignment, got %+v", assignments)
		}
	})

	t.Run("revoking another tenant's assignment reads as not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/rbac/users/staff-9/roles/a-two", "mgr-1", false, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}

		row, err := store.GetAssignment(ctx, "a-two")
		if err != nil {
			t.Fatalf("GetAssignment failed: %v", err)
		}
		if !row.IsActive {
			t.Error("Out-of-scope assignment must stay active")
		}
	})

	t.Run("super admin revokes anywhere", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/rbac/users/staff-9/roles/a-two", "root-1", true, nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("Expected 204, got %d", rec.Code)
		}
	})

	t.Run("unknown assignment reads as not found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/rbac/users/staff-9/roles/ghost", "mgr-1", false, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})
}
