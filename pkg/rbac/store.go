package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store handles RBAC data persistence. Role permission lists are stored as
// JSON arrays of permission names and validated through ParsePermission when
// they load, so malformed names are rejected at load time, not at check time.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		if _, err := ParsePermission(p.Name()); err != nil {
			return fmt.Errorf("role %s carries invalid permission: %w", role.Name, err)
		}
		names = append(names, p.Name())
	}

	permissionsJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (id, name, display_name, description, organization_id, is_system_role, is_org_admin, permissions, is_active, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	_, err = s.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		role.OrganizationID,
		role.IsSystemRole,
		role.IsOrgAdmin,
		string(permissionsJSON),
		role.IsActive,
		now,
		now,
		role.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID string) (*Role, error) {
	query := `
		SELECT id, name, display_name, description, organization_id, is_system_role, is_org_admin, permissions, is_active, created_at, updated_at, created_by
		FROM roles
		WHERE id = $1
	`

	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// GetRoleByName retrieves a role by name within an organization. A nil
// organizationID looks up global/system roles.
func (s *Store) GetRoleByName(ctx context.Context, name string, organizationID *string) (*Role, error) {
	var query string
	var args []interface{}
	if organizationID == nil {
		query = `
			SELECT id, name, display_name, description, organization_id, is_system_role, is_org_admin, permissions, is_active, created_at, updated_at, created_by
			FROM roles
			WHERE name = $1 AND organization_id IS NULL
		`
		args = []interface{}{name}
	} else {
		query = `
			SELECT id, name, display_name, description, organization_id, is_system_role, is_org_admin, permissions, is_active, created_at, updated_at, created_by
			FROM roles
			WHERE name = $1 AND organization_id = $2
		`
		args = []interface{}{name, *organizationID}
	}

	role, err := scanRole(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// ListRoles lists roles visible to an organization: its own roles plus
// global/system roles.
func (s *Store) ListRoles(ctx context.Context, organizationID *string) ([]Role, error) {
	query := `
		SELECT id, name, display_name, description, organization_id, is_system_role, is_org_admin, permissions, is_active, created_at, updated_at, created_by
		FROM roles
		WHERE (organization_id = $1 OR organization_id IS NULL) AND is_active = $2
		ORDER BY is_system_role DESC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	return roles, rows.Err()
}

// UpdateRole updates a role's display fields and permission set
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		if _, err := ParsePermission(p.Name()); err != nil {
			return fmt.Errorf("role %s carries invalid permission: %w", role.Name, err)
		}
		names = append(names, p.Name())
	}

	permissionsJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE roles
		SET display_name = $1, description = $2, permissions = $3, is_org_admin = $4, updated_at = $5
		WHERE id = $6 AND is_system_role = $7
	`

	role.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.DisplayName,
		role.Description,
		string(permissionsJSON),
		role.IsOrgAdmin,
		role.UpdatedAt,
		role.ID,
		false,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("role not found or is a system role: %s", role.ID)
	}

	return nil
}

// DeactivateRole soft-deletes a role. System roles cannot be deactivated.
func (s *Store) DeactivateRole(ctx context.Context, roleID string) error {
	query := `UPDATE roles SET is_active = $1, updated_at = $2 WHERE id = $3 AND is_system_role = $4`
	result, err := s.db.ExecContext(ctx, query, false, time.Now(), roleID, false)
	if err != nil {
		return fmt.Errorf("failed to deactivate role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("role not found or is a system role: %s", roleID)
	}

	return nil
}

// AssignRole assigns a role to a user, optionally scoped to an organization
// and with an optional expiry.
func (s *Store) AssignRole(ctx context.Context, assignment *UserRoleAssignment) error {
	query := `
		INSERT INTO user_role_assignments (id, user_id, role_id, organization_id, is_active, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	assignment.IsActive = true
	_, err := s.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.UserID,
		assignment.RoleID,
		assignment.OrganizationID,
		assignment.IsActive,
		assignment.GrantedBy,
		now,
		assignment.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	assignment.GrantedAt = now
	return nil
}

// RevokeAssignment deactivates a role assignment
func (s *Store) RevokeAssignment(ctx context.Context, assignmentID string) error {
	query := `UPDATE user_role_assignments SET is_active = $1 WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, false, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to revoke assignment: %w", err)
	}
	return nil
}

// GetAssignment returns one assignment row by id
func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (*UserRoleAssignment, error) {
	query := `
		SELECT id, user_id, role_id, organization_id, is_active, granted_by, granted_at, expires_at
		FROM user_role_assignments
		WHERE id = $1
	`

	var a UserRoleAssignment
	var orgID, grantedBy sql.NullString
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, assignmentID).Scan(
		&a.ID,
		&a.UserID,
		&a.RoleID,
		&orgID,
		&a.IsActive,
		&grantedBy,
		&a.GrantedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	if orgID.Valid {
		v := orgID.String
		a.OrganizationID = &v
	}
	if grantedBy.Valid {
		v := grantedBy.String
		a.GrantedBy = &v
	}
	if expiresAt.Valid {
		v := expiresAt.Time
		a.ExpiresAt = &v
	}

	return &a, nil
}

// GetUserAssignments returns every assignment row for a user, including
// inactive and expired ones. Filtering is the context builder's job so the
// active/expiry rules live in exactly one place.
func (s *Store) GetUserAssignments(ctx context.Context, userID string) ([]UserRoleAssignment, error) {
	query := `
		SELECT id, user_id, role_id, organization_id, is_active, granted_by, granted_at, expires_at
		FROM user_role_assignments
		WHERE user_id = $1
		ORDER BY granted_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user assignments: %w", err)
	}
	defer rows.Close()

	var assignments []UserRoleAssignment
	for rows.Next() {
		var a UserRoleAssignment
		var orgID, grantedBy sql.NullString
		var expiresAt sql.NullTime

		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.RoleID,
			&orgID,
			&a.IsActive,
			&grantedBy,
			&a.GrantedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}

		if orgID.Valid {
			v := orgID.String
			a.OrganizationID = &v
		}
		if grantedBy.Valid {
			v := grantedBy.String
			a.GrantedBy = &v
		}
		if expiresAt.Valid {
			v := expiresAt.Time
			a.ExpiresAt = &v
		}

		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// GetUserMemberships returns a user's direct organization memberships
func (s *Store) GetUserMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT user_id, organization_id, is_active, joined_at
		FROM user_organizations
		WHERE user_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.IsActive, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// LoadAuthorizationRows fetches everything the context builder needs for
// one user: assignment rows, the roles they reference, and direct
// organization memberships.
func (s *Store) LoadAuthorizationRows(ctx context.Context, userID string) (AuthorizationRows, error) {
	assignments, err := s.GetUserAssignments(ctx, userID)
	if err != nil {
		return AuthorizationRows{}, err
	}

	memberships, err := s.GetUserMemberships(ctx, userID)
	if err != nil {
		return AuthorizationRows{}, err
	}

	roles := make(map[string]Role)
	for _, a := range assignments {
		if _, ok := roles[a.RoleID]; ok {
			continue
		}
		role, err := s.GetRole(ctx, a.RoleID)
		if err != nil {
			// A dangling role reference drops the assignment rather than
			// failing the whole context build.
			continue
		}
		roles[role.ID] = *role
	}

	return AuthorizationRows{
		Assignments: assignments,
		Roles:       roles,
		Memberships: memberships,
	}, nil
}

// DeleteExpiredAssignments removes assignments whose expiry passed before
// the cutoff. Used by the maintenance job.
func (s *Store) DeleteExpiredAssignments(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM user_role_assignments WHERE expires_at IS NOT NULL AND expires_at < $1`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired assignments: %w", err)
	}
	return result.RowsAffected()
}

// scanRole scans a role row and validates its permission names
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var permissionsJSON string
	var orgID, createdBy sql.NullString

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&orgID,
		&role.IsSystemRole,
		&role.IsOrgAdmin,
		&permissionsJSON,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		v := orgID.String
		role.OrganizationID = &v
	}
	if createdBy.Valid {
		v := createdBy.String
		role.CreatedBy = &v
	}

	var names []string
	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &names); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions for role %s: %w", role.ID, err)
		}
	}

	role.Permissions = make([]Permission, 0, len(names))
	for _, name := range names {
		p, err := ParsePermission(name)
		if err != nil {
			return nil, fmt.Errorf("role %s carries invalid permission: %w", role.ID, err)
		}
		role.Permissions = append(role.Permissions, p)
	}

	return &role, nil
}
