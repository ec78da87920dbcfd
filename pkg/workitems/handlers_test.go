package workitems

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/orgs"
	"github.com/practicehub/practicehub/pkg/rbac"
)

// setupHandlers wires the full request path: identity middleware, user
// context construction from the database, and the work item routes.
func setupHandlers(t *testing.T) (*mux.Router, *Store, *rbac.Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE roles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			description TEXT,
			organization_id TEXT,
			is_system_role INTEGER NOT NULL DEFAULT 0,
			is_org_admin INTEGER NOT NULL DEFAULT 0,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT
		);

		CREATE TABLE user_role_assignments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			role_id TEXT NOT NULL,
			organization_id TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			granted_by TEXT,
			granted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP
		);

		CREATE TABLE user_organizations (
			user_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, organization_id)
		);

		CREATE TABLE work_items (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			organization_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	rbacStore := rbac.NewStore(db)

	hierarchyCache := orgs.NewHierarchyCache(func(ctx context.Context) ([]orgs.Organization, error) {
		return []orgs.Organization{
			{ID: "clinic-a", Name: "clinic-a", IsActive: true},
			{ID: "clinic-b", Name: "clinic-b", IsActive: true},
		}, nil
	}, logger, nil)
	if err := hierarchyCache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	builder := rbac.NewContextBuilder(rbacStore, logger, nil)
	mw := rbac.NewMiddleware(builder, hierarchyCache, logger, nil)

	store := NewStore(db)
	handlers := NewHandlers(NewService(store, nil, logger), mw)

	router := mux.NewRouter()
	router.Use(mw.RequestID, mw.Identity, mw.UserContext)
	handlers.RegisterRoutes(router)

	return router, store, rbacStore
}

func grantWorkItemAccess(t *testing.T, store *rbac.Store, userID, orgID string, actions ...rbac.Action) {
	t.Helper()

	permissions := make([]rbac.Permission, 0, len(actions))
	for _, action := range actions {
		permissions = append(permissions, rbac.Permission{
			Resource: rbac.ResourceWorkItems, Action: action, Scope: rbac.ScopeOrganization,
		})
	}

	ctx := context.Background()
	role := &rbac.Role{ID: "role-" + userID, Name: "role-" + userID, DisplayName: "Test", IsActive: true, Permissions: permissions}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if err := store.AssignRole(ctx, &rbac.UserRoleAssignment{
		ID: "assign-" + userID, UserID: userID, RoleID: role.ID, OrganizationID: &orgID,
	}); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
}

func doRequest(t *testing.T, router *mux.Router, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(rbac.HeaderUserID, userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CreateAndGet(t *testing.T) {
	router, _, rbacStore := setupHandlers(t)
	grantWorkItemAccess(t, rbacStore, "user-1", "clinic-a", rbac.ActionCreate, rbac.ActionRead)

	rec := doRequest(t, router, http.MethodPost, "/work-items", "user-1", map[string]string{
		"title":           "Referral follow-up",
		"organization_id": "clinic-a",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode work item: %v", err)
	}

	rec = doRequest(t, router, http.MethodGet, "/work-items/"+created.ID, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestHandlers_OutOfScopeReadsAsNotFound(t *testing.T) {
	router, store, rbacStore := setupHandlers(t)
	grantWorkItemAccess(t, rbacStore, "user-1", "clinic-a", rbac.ActionRead)
	seedItem(t, store, "wi-b", "clinic-b", "someone-else")

	rec := doRequest(t, router, http.MethodGet, "/work-items/wi-b", "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for out-of-scope item, got %d", rec.Code)
	}

	// Identical status for a genuinely missing id
	rec = doRequest(t, router, http.MethodGet, "/work-items/ghost", "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing item, got %d", rec.Code)
	}
}

func TestHandlers_ListScoped(t *testing.T) {
	router, store, rbacStore := setupHandlers(t)
	grantWorkItemAccess(t, rbacStore, "user-1", "clinic-a", rbac.ActionRead)
	seedItem(t, store, "wi-a", "clinic-a", "user-1")
	seedItem(t, store, "wi-b", "clinic-b", "user-2")

	rec := doRequest(t, router, http.MethodGet, "/work-items", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var items []WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("Failed to decode items: %v", err)
	}
	if len(items) != 1 || items[0].ID != "wi-a" {
		t.Errorf("Expected only the clinic-a item, got %v", items)
	}
}

func TestHandlers_ListWithoutPermission(t *testing.T) {
	router, _, _ := setupHandlers(t)

	rec := doRequest(t, router, http.MethodGet, "/work-items", "nobody", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestHandlers_UpdateAndDelete(t *testing.T) {
	router, store, rbacStore := setupHandlers(t)
	grantWorkItemAccess(t, rbacStore, "user-1", "clinic-a",
		rbac.ActionRead, rbac.ActionUpdate, rbac.ActionDelete)
	seedItem(t, store, "wi-a", "clinic-a", "user-1")

	rec := doRequest(t, router, http.MethodPut, "/work-items/wi-a", "user-1", map[string]string{
		"status": "completed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Failed to decode item: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("Expected completed, got %s", updated.Status)
	}

	rec = doRequest(t, router, http.MethodDelete, "/work-items/wi-a", "user-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/work-items/wi-a", "user-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandlers_RequiresIdentity(t *testing.T) {
	router, _, _ := setupHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/work-items", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity headers, got %d", rec.Code)
	}
}
