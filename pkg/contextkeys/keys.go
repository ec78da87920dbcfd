// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: rbac.IdentityMiddleware
	// Required by: RBAC middleware, all protected endpoints
	IdentityKey Key = "identity"

	// UserContextKey contains *rbac.UserContext
	// Set by: rbac.ContextMiddleware after per-request context construction
	// Required by: every scoped service call
	UserContextKey Key = "user_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware
	// Used by: Logger, audit trail, distributed tracing
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: identity middleware
	// Used by: Logger, audit trail, owner-scoped queries
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	LoggerKey Key = "logger"
)

// WithIdentity adds the verified identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithUserContext adds the resolved user context to the context
func WithUserContext(ctx context.Context, uc interface{}) context.Context {
	return context.WithValue(ctx, UserContextKey, uc)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequestID retrieves the request ID from the context
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// UserID retrieves the user ID from the context
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
