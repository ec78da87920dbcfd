package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Mapper resolves organizations to the practice identifiers used for
// row-level filtering in the analytics store. The association is maintained
// outside this subsystem; the mapper only reads it.
type Mapper interface {
	// PracticesFor returns the practice ids mapped to any of the given
	// organizations, deduplicated and sorted. An empty input or an
	// organization with no practices yields an empty slice, not an error.
	PracticesFor(ctx context.Context, organizationIDs []string) ([]string, error)
}

// PostgresMapper reads the organization to practice association from the
// org_practices table.
type PostgresMapper struct {
	db *sql.DB
}

// NewPostgresMapper creates a mapper over the given database
func NewPostgresMapper(db *sql.DB) *PostgresMapper {
	return &PostgresMapper{db: db}
}

// PracticesFor returns practice ids for the given organizations
func (m *PostgresMapper) PracticesFor(ctx context.Context, organizationIDs []string) ([]string, error) {
	if len(organizationIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT practice_id
		FROM org_practices
		WHERE organization_id = ANY($1)
		ORDER BY practice_id
	`

	rows, err := m.db.QueryContext(ctx, query, pq.Array(organizationIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query organization practices: %w", err)
	}
	defer rows.Close()

	var practices []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan practice id: %w", err)
		}
		practices = append(practices, id)
	}

	return practices, rows.Err()
}

// AddPractice associates a practice with an organization
func (m *PostgresMapper) AddPractice(ctx context.Context, organizationID, practiceID string) error {
	query := `
		INSERT INTO org_practices (organization_id, practice_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, practice_id) DO NOTHING
	`
	if _, err := m.db.ExecContext(ctx, query, organizationID, practiceID); err != nil {
		return fmt.Errorf("failed to add practice mapping: %w", err)
	}
	return nil
}

// RemovePractice removes a practice association
func (m *PostgresMapper) RemovePractice(ctx context.Context, organizationID, practiceID string) error {
	query := `DELETE FROM org_practices WHERE organization_id = $1 AND practice_id = $2`
	if _, err := m.db.ExecContext(ctx, query, organizationID, practiceID); err != nil {
		return fmt.Errorf("failed to remove practice mapping: %w", err)
	}
	return nil
}
