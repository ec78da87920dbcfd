package workitems

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/practicehub/practicehub/pkg/rbac"
)

// ErrNotFound is returned when a work item does not exist
var ErrNotFound = fmt.Errorf("work item not found")

// Store provides database operations for work items
type Store struct {
	db *sql.DB
}

// NewStore creates a work item store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new work item
func (s *Store) Create(ctx context.Context, item *WorkItem) error {
	query := `
		INSERT INTO work_items (id, title, description, status, organization_id, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Title, item.Description, string(item.Status),
		item.OrganizationID, item.OwnerID, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create work item: %w", err)
	}
	return nil
}

// Get retrieves a work item by id
func (s *Store) Get(ctx context.Context, id string) (*WorkItem, error) {
	query := `
		SELECT id, title, description, status, organization_id, owner_id, created_at, updated_at
		FROM work_items
		WHERE id = $1
	`

	var item WorkItem
	var description sql.NullString
	var status string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Title, &description, &status,
		&item.OrganizationID, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}

	item.Description = description.String
	item.Status = Status(status)
	return &item, nil
}

// Update writes the mutable fields of a work item
func (s *Store) Update(ctx context.Context, item *WorkItem) error {
	query := `
		UPDATE work_items
		SET title = $1, description = $2, status = $3, owner_id = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		item.Title, item.Description, string(item.Status), item.OwnerID,
		time.Now().UTC(), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update work item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a work item
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete work item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns work items matching the visibility filter and, optionally,
// a status. The filter is applied verbatim: a match-nothing filter returns
// zero rows without touching the database, and there is no code path that
// turns an empty organization set into an unfiltered query.
func (s *Store) List(ctx context.Context, filter rbac.QueryFilter, status Status) ([]WorkItem, error) {
	if filter.MatchesNothing() {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Kind {
	case rbac.FilterUnrestricted:
		// no scope predicate

	case rbac.FilterOrganizationSet:
		if len(filter.OrganizationIDs) == 0 {
			return nil, nil
		}
		placeholders := make([]string, 0, len(filter.OrganizationIDs))
		for _, orgID := range filter.OrganizationIDs {
			placeholders = append(placeholders, arg(orgID))
		}
		conditions = append(conditions, fmt.Sprintf("organization_id IN (%s)", strings.Join(placeholders, ", ")))

	case rbac.FilterOwnerOnly:
		if filter.OwnerID == "" {
			return nil, nil
		}
		conditions = append(conditions, fmt.Sprintf("owner_id = %s", arg(filter.OwnerID)))

	default:
		return nil, nil
	}

	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = %s", arg(string(status))))
	}

	query := `
		SELECT id, title, description, status, organization_id, owner_id, created_at, updated_at
		FROM work_items
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		var item WorkItem
		var description sql.NullString
		var itemStatus string
		if err := rows.Scan(
			&item.ID, &item.Title, &description, &itemStatus,
			&item.OrganizationID, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		item.Description = description.String
		item.Status = Status(itemStatus)
		items = append(items, item)
	}

	return items, rows.Err()
}
