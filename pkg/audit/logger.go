package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/practicehub/practicehub/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogPermissionCheck logs the outcome of a permission evaluation
	LogPermissionCheck(ctx context.Context, userID, permission, organizationID string, decision Decision) error

	// LogAccessDenied logs a denied operation on a concrete resource
	LogAccessDenied(ctx context.Context, userID, permission, resourceID, reason string) error

	// LogSuperAdminBypass logs a super-admin short-circuit
	LogSuperAdminBypass(ctx context.Context, userID, permission string) error

	// LogScopeFailClosed logs a fail-closed filter resolution
	LogScopeFailClosed(ctx context.Context, userID, reason string) error

	// LogRoleChange logs a role mutation or assignment change
	LogRoleChange(ctx context.Context, eventType EventType, actorID, roleID string, metadata map[string]interface{}) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// NewEvent builds an event stamped with the request id from the context
func NewEvent(ctx context.Context, eventType EventType, decision Decision) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Decision:  decision,
		RequestID: contextkeys.RequestID(ctx),
	}
}

// NoOpLogger discards every event. Used when auditing is disabled and as the
// fallback when no logger is configured.
type NoOpLogger struct{}

func (l *NoOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

func (l *NoOpLogger) LogPermissionCheck(ctx context.Context, userID, permission, organizationID string, decision Decision) error {
	return nil
}

func (l *NoOpLogger) LogAccessDenied(ctx context.Context, userID, permission, resourceID, reason string) error {
	return nil
}

func (l *NoOpLogger) LogSuperAdminBypass(ctx context.Context, userID, permission string) error {
	return nil
}

func (l *NoOpLogger) LogScopeFailClosed(ctx context.Context, userID, reason string) error {
	return nil
}

func (l *NoOpLogger) LogRoleChange(ctx context.Context, eventType EventType, actorID, roleID string, metadata map[string]interface{}) error {
	return nil
}

func (l *NoOpLogger) Close() error {
	return nil
}
