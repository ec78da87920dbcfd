package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the authorization schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					parent_organization_id VARCHAR(64) REFERENCES organizations(id) ON DELETE SET NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_parent ON organizations(parent_organization_id);
				CREATE INDEX idx_organizations_is_active ON organizations(is_active);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					organization_id VARCHAR(64) REFERENCES organizations(id) ON DELETE CASCADE,
					is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
					is_org_admin BOOLEAN NOT NULL DEFAULT FALSE,
					permissions JSONB NOT NULL DEFAULT '[]',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by VARCHAR(64),
					UNIQUE(name, organization_id)
				);

				CREATE INDEX idx_roles_organization_id ON roles(organization_id);
				CREATE INDEX idx_roles_name ON roles(name);
				CREATE INDEX idx_roles_is_system_role ON roles(is_system_role);
			`,
		},
		{
			Version:     3,
			Description: "Create user_role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_role_assignments (
					id VARCHAR(64) PRIMARY KEY,
					user_id VARCHAR(64) NOT NULL,
					role_id VARCHAR(64) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					organization_id VARCHAR(64) REFERENCES organizations(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					granted_by VARCHAR(64),
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP
				);

				CREATE INDEX idx_user_role_assignments_user_id ON user_role_assignments(user_id);
				CREATE INDEX idx_user_role_assignments_role_id ON user_role_assignments(role_id);
				CREATE INDEX idx_user_role_assignments_organization_id ON user_role_assignments(organization_id);
				CREATE INDEX idx_user_role_assignments_expires_at ON user_role_assignments(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create user_organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_organizations (
					user_id VARCHAR(64) NOT NULL,
					organization_id VARCHAR(64) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, organization_id)
				);

				CREATE INDEX idx_user_organizations_organization_id ON user_organizations(organization_id);
			`,
		},
		{
			Version:     5,
			Description: "Create org_practices table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_practices (
					organization_id VARCHAR(64) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					practice_id VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (organization_id, practice_id)
				);

				CREATE INDEX idx_org_practices_practice_id ON org_practices(practice_id);
			`,
		},
		{
			Version:     6,
			Description: "Create work_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS work_items (
					id VARCHAR(64) PRIMARY KEY,
					title VARCHAR(500) NOT NULL,
					description TEXT,
					status VARCHAR(50) NOT NULL DEFAULT 'open',
					organization_id VARCHAR(64) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					owner_id VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_work_items_organization_id ON work_items(organization_id);
				CREATE INDEX idx_work_items_owner_id ON work_items(owner_id);
				CREATE INDEX idx_work_items_status ON work_items(status);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id VARCHAR(64) PRIMARY KEY,
					event_type VARCHAR(100) NOT NULL,
					decision VARCHAR(50) NOT NULL,
					user_id VARCHAR(64),
					organization_id VARCHAR(64),
					resource VARCHAR(100),
					action VARCHAR(100),
					permission VARCHAR(255),
					resource_id VARCHAR(255),
					request_id VARCHAR(100),
					message TEXT,
					metadata JSONB,
					occurred_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_user_id ON audit_events(user_id);
				CREATE INDEX idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX idx_audit_events_occurred_at ON audit_events(occurred_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM authz_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read migration versions: %w", err)
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO authz_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// InitializeBuiltInRoles creates the built-in system roles if they don't exist
func InitializeBuiltInRoles(ctx context.Context, store *Store) error {
	for _, role := range BuiltInRoles() {
		existing, err := store.GetRoleByName(ctx, role.Name, nil)
		if err == nil && existing != nil {
			continue
		}

		role.ID = uuid.NewString()
		if err := store.CreateRole(ctx, &role); err != nil {
			return fmt.Errorf("failed to create built-in role %s: %w", role.Name, err)
		}
	}

	return nil
}
