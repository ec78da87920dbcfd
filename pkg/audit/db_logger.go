package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DBLogger implements audit logging to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger. The audit_events
// table is created by the schema migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log writes an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error

	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, decision,
			user_id, organization_id,
			resource, action, permission, resource_id,
			request_id, message, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = l.db.ExecContext(ctx, query,
		event.ID, event.EventType, event.Decision,
		event.UserID, event.OrganizationID,
		event.Resource, event.Action, event.Permission, event.ResourceID,
		event.RequestID, event.Message, nullableJSON(metadataJSON), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// LogPermissionCheck logs the outcome of a permission evaluation
func (l *DBLogger) LogPermissionCheck(ctx context.Context, userID, permission, organizationID string, decision Decision) error {
	event := NewEvent(ctx, EventTypePermissionCheck, decision)
	event.UserID = userID
	event.Permission = permission
	event.OrganizationID = organizationID
	return l.Log(ctx, event)
}

// LogAccessDenied logs a denied operation on a concrete resource
func (l *DBLogger) LogAccessDenied(ctx context.Context, userID, permission, resourceID, reason string) error {
	event := NewEvent(ctx, EventTypeAccessDenied, DecisionDenied)
	event.UserID = userID
	event.Permission = permission
	event.ResourceID = resourceID
	event.Message = reason
	return l.Log(ctx, event)
}

// LogSuperAdminBypass logs a super-admin short-circuit
func (l *DBLogger) LogSuperAdminBypass(ctx context.Context, userID, permission string) error {
	event := NewEvent(ctx, EventTypeSuperAdminBypass, DecisionBypass)
	event.UserID = userID
	event.Permission = permission
	return l.Log(ctx, event)
}

// LogScopeFailClosed logs a fail-closed filter resolution
func (l *DBLogger) LogScopeFailClosed(ctx context.Context, userID, reason string) error {
	event := NewEvent(ctx, EventTypeScopeFailClosed, DecisionDenied)
	event.UserID = userID
	event.Message = reason
	return l.Log(ctx, event)
}

// LogRoleChange logs a role mutation or assignment change
func (l *DBLogger) LogRoleChange(ctx context.Context, eventType EventType, actorID, roleID string, metadata map[string]interface{}) error {
	event := NewEvent(ctx, eventType, DecisionGranted)
	event.UserID = actorID
	event.ResourceID = roleID
	event.Metadata = metadata
	return l.Log(ctx, event)
}

// Close is a no-op; the logger does not own the connection
func (l *DBLogger) Close() error {
	return nil
}

// Search queries audit events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]Event, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartTime != nil {
		conditions = append(conditions, "occurred_at >= "+arg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "occurred_at <= "+arg(*filter.EndTime))
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = "+arg(filter.UserID))
	}
	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = "+arg(filter.OrganizationID))
	}
	if filter.Decision != nil {
		conditions = append(conditions, "decision = "+arg(string(*filter.Decision)))
	}
	if filter.Resource != "" {
		conditions = append(conditions, "resource = "+arg(filter.Resource))
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = "+arg(filter.ResourceID))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, 0, len(filter.EventTypes))
		for _, et := range filter.EventTypes {
			placeholders = append(placeholders, arg(string(et)))
		}
		conditions = append(conditions, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `
		SELECT id, event_type, decision, user_id, organization_id,
			resource, action, permission, resource_id,
			request_id, message, metadata, occurred_at
		FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var userID, orgID, resource, action, permission, resourceID, requestID, message sql.NullString
		var metadataJSON sql.NullString
		var occurredAt time.Time

		err := rows.Scan(
			&e.ID, &e.EventType, &e.Decision, &userID, &orgID,
			&resource, &action, &permission, &resourceID,
			&requestID, &message, &metadataJSON, &occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		e.UserID = userID.String
		e.OrganizationID = orgID.String
		e.Resource = resource.String
		e.Action = action.String
		e.Permission = permission.String
		e.ResourceID = resourceID.String
		e.RequestID = requestID.String
		e.Message = message.String
		e.Timestamp = occurredAt

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for event %s: %w", e.ID, err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// DeleteOlderThan removes events older than the cutoff. Used by the
// retention maintenance job.
func (l *DBLogger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}
	return result.RowsAffected()
}

// nullableJSON maps empty JSON to NULL so the column stays queryable
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
