package audit

import (
	"context"
	"sync"
)

// MultiLogger fans events out to several loggers. A failure in one
// destination never blocks the others.
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a multi-logger over the given destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		errChan: make(chan error, len(loggers)),
	}
}

// SetAsync sets whether fan-out happens asynchronously
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Errors exposes errors collected from asynchronous fan-out
func (m *MultiLogger) Errors() <-chan error {
	return m.errChan
}

// Log fans an event out to every destination
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.async {
		for _, logger := range m.loggers {
			m.wg.Add(1)
			go func(l Logger) {
				defer m.wg.Done()
				if err := l.Log(ctx, event); err != nil {
					select {
					case m.errChan <- err:
					default:
					}
				}
			}(logger)
		}
		return nil
	}

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LogPermissionCheck fans out a permission check event
func (m *MultiLogger) LogPermissionCheck(ctx context.Context, userID, permission, organizationID string, decision Decision) error {
	event := NewEvent(ctx, EventTypePermissionCheck, decision)
	event.UserID = userID
	event.Permission = permission
	event.OrganizationID = organizationID
	return m.Log(ctx, event)
}

// LogAccessDenied fans out an access denied event
func (m *MultiLogger) LogAccessDenied(ctx context.Context, userID, permission, resourceID, reason string) error {
	event := NewEvent(ctx, EventTypeAccessDenied, DecisionDenied)
	event.UserID = userID
	event.Permission = permission
	event.ResourceID = resourceID
	event.Message = reason
	return m.Log(ctx, event)
}

// LogSuperAdminBypass fans out a super-admin bypass event
func (m *MultiLogger) LogSuperAdminBypass(ctx context.Context, userID, permission string) error {
	event := NewEvent(ctx, EventTypeSuperAdminBypass, DecisionBypass)
	event.UserID = userID
	event.Permission = permission
	return m.Log(ctx, event)
}

// LogScopeFailClosed fans out a fail-closed event
func (m *MultiLogger) LogScopeFailClosed(ctx context.Context, userID, reason string) error {
	event := NewEvent(ctx, EventTypeScopeFailClosed, DecisionDenied)
	event.UserID = userID
	event.Message = reason
	return m.Log(ctx, event)
}

// LogRoleChange fans out a role change event
func (m *MultiLogger) LogRoleChange(ctx context.Context, eventType EventType, actorID, roleID string, metadata map[string]interface{}) error {
	event := NewEvent(ctx, eventType, DecisionGranted)
	event.UserID = actorID
	event.ResourceID = roleID
	event.Metadata = metadata
	return m.Log(ctx, event)
}

// Close waits for in-flight asynchronous writes and closes every destination
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
