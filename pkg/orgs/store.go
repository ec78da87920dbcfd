package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store handles organization persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new organization store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateOrganization creates a new organization. If a parent is given it must
// exist; acyclicity holds trivially for new nodes.
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Status == "" {
		org.Status = OrgStatusActive
	}
	org.IsActive = org.Status == OrgStatusActive

	query := `
		INSERT INTO organizations (id, name, display_name, description, parent_organization_id, status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.DisplayName,
		org.Description,
		org.ParentOrganizationID,
		org.Status,
		org.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	query := `
		SELECT id, name, display_name, description, parent_organization_id, status, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, orgID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization not found: %s", orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// ListOrganizations returns all organizations, including inactive ones.
// The hierarchy snapshot builder filters on is_active itself.
func (s *Store) ListOrganizations(ctx context.Context) ([]Organization, error) {
	query := `
		SELECT id, name, display_name, description, parent_organization_id, status, is_active, created_at, updated_at
		FROM organizations
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var organizations []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		organizations = append(organizations, *org)
	}

	return organizations, rows.Err()
}

// SetParent re-parents an organization after verifying the edit keeps the
// tree acyclic: the new parent's ancestor chain must not contain the org
// being moved.
func (s *Store) SetParent(ctx context.Context, orgID string, parentID *string) error {
	if parentID != nil {
		if *parentID == orgID {
			return fmt.Errorf("organization %s cannot be its own parent", orgID)
		}

		ancestor := *parentID
		visited := map[string]struct{}{orgID: {}}
		for ancestor != "" {
			if _, seen := visited[ancestor]; seen {
				return fmt.Errorf("re-parenting %s under %s would create a cycle", orgID, *parentID)
			}
			visited[ancestor] = struct{}{}

			next, err := s.parentOf(ctx, ancestor)
			if err != nil {
				return err
			}
			if next == nil {
				break
			}
			ancestor = *next
		}
	}

	query := `UPDATE organizations SET parent_organization_id = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, parentID, time.Now(), orgID)
	if err != nil {
		return fmt.Errorf("failed to update organization parent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("organization not found: %s", orgID)
	}

	return nil
}

// SetStatus updates an organization's status and active flag
func (s *Store) SetStatus(ctx context.Context, orgID string, status OrgStatus) error {
	query := `UPDATE organizations SET status = $1, is_active = $2, updated_at = $3 WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query, status, status == OrgStatusActive, time.Now(), orgID)
	if err != nil {
		return fmt.Errorf("failed to update organization status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("organization not found: %s", orgID)
	}

	return nil
}

func (s *Store) parentOf(ctx context.Context, orgID string) (*string, error) {
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT parent_organization_id FROM organizations WHERE id = $1`, orgID).Scan(&parent)
	if err == sql.ErrNoRows {
		// Dangling reference: treat as a root, consistent with traversal.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent of %s: %w", orgID, err)
	}
	if !parent.Valid {
		return nil, nil
	}
	p := parent.String
	return &p, nil
}

func scanOrganization(scanner interface {
	Scan(dest ...interface{}) error
}) (*Organization, error) {
	var org Organization
	var parentID sql.NullString

	err := scanner.Scan(
		&org.ID,
		&org.Name,
		&org.DisplayName,
		&org.Description,
		&parentID,
		&org.Status,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		p := parentID.String
		org.ParentOrganizationID = &p
	}

	return &org, nil
}
