package orgs

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			description TEXT,
			parent_organization_id TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

func seedTree(t *testing.T, store *Store) {
	t.Helper()

	ctx := context.Background()
	for _, org := range []Organization{
		{ID: "root", Name: "root", DisplayName: "Root"},
		{ID: "clinic-a", Name: "clinic-a", DisplayName: "Clinic A", ParentOrganizationID: strPtr("root")},
		{ID: "ward-a1", Name: "ward-a1", DisplayName: "Ward A1", ParentOrganizationID: strPtr("clinic-a")},
	} {
		org := org
		if err := store.CreateOrganization(ctx, &org); err != nil {
			t.Fatalf("Failed to seed %s: %v", org.ID, err)
		}
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(setupTestDB(t))
	seedTree(t, store)

	org, err := store.GetOrganization(context.Background(), "clinic-a")
	if err != nil {
		t.Fatalf("GetOrganization failed: %v", err)
	}
	if org.ParentOrganizationID == nil || *org.ParentOrganizationID != "root" {
		t.Errorf("Expected parent root, got %v", org.ParentOrganizationID)
	}
	if org.Status != OrgStatusActive || !org.IsActive {
		t.Errorf("Expected active organization, got %+v", org)
	}
}

func TestStore_ListOrganizations(t *testing.T) {
	store := NewStore(setupTestDB(t))
	seedTree(t, store)

	organizations, err := store.ListOrganizations(context.Background())
	if err != nil {
		t.Fatalf("ListOrganizations failed: %v", err)
	}
	if len(organizations) != 3 {
		t.Errorf("Expected 3 organizations, got %d", len(organizations))
	}
}

func TestStore_SetParent(t *testing.T) {
	store := NewStore(setupTestDB(t))
	seedTree(t, store)

	ctx := context.Background()

	t.Run("valid reparent", func(t *testing.T) {
		if err := store.SetParent(ctx, "ward-a1", strPtr("root")); err != nil {
			t.Fatalf("SetParent failed: %v", err)
		}
		org, err := store.GetOrganization(ctx, "ward-a1")
		if err != nil {
			t.Fatalf("GetOrganization failed: %v", err)
		}
		if org.ParentOrganizationID == nil || *org.ParentOrganizationID != "root" {
			t.Errorf("Expected parent root, got %v", org.ParentOrganizationID)
		}
	})

	t.Run("self parent rejected", func(t *testing.T) {
		err := store.SetParent(ctx, "clinic-a", strPtr("clinic-a"))
		if err == nil || !strings.Contains(err.Error(), "own parent") {
			t.Errorf("Expected self-parent rejection, got %v", err)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		// root -> clinic-a exists, so clinic-a cannot become root's parent.
		err := store.SetParent(ctx, "root", strPtr("clinic-a"))
		if err == nil || !strings.Contains(err.Error(), "cycle") {
			t.Errorf("Expected cycle rejection, got %v", err)
		}
	})

	t.Run("detach to root", func(t *testing.T) {
		if err := store.SetParent(ctx, "clinic-a", nil); err != nil {
			t.Fatalf("SetParent failed: %v", err)
		}
		org, err := store.GetOrganization(ctx, "clinic-a")
		if err != nil {
			t.Fatalf("GetOrganization failed: %v", err)
		}
		if org.ParentOrganizationID != nil {
			t.Errorf("Expected detached org, got parent %v", *org.ParentOrganizationID)
		}
	})

	t.Run("unknown org", func(t *testing.T) {
		if err := store.SetParent(ctx, "ghost", nil); err == nil {
			t.Error("Expected error for unknown organization")
		}
	})
}

func TestStore_SetStatus(t *testing.T) {
	store := NewStore(setupTestDB(t))
	seedTree(t, store)

	ctx := context.Background()
	if err := store.SetStatus(ctx, "clinic-a", OrgStatusSuspended); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	org, err := store.GetOrganization(ctx, "clinic-a")
	if err != nil {
		t.Fatalf("GetOrganization failed: %v", err)
	}
	if org.Status != OrgStatusSuspended || org.IsActive {
		t.Errorf("Expected suspended inactive org, got %+v", org)
	}

	// A suspended org vanishes from a freshly built hierarchy.
	organizations, err := store.ListOrganizations(ctx)
	if err != nil {
		t.Fatalf("ListOrganizations failed: %v", err)
	}
	h := NewHierarchy(organizations)
	if h.Contains("clinic-a") {
		t.Error("Suspended org must not appear in the hierarchy snapshot")
	}
}
