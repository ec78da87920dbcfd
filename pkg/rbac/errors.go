package rbac

import (
	"errors"
	"fmt"
)

// ErrNoAccess signals that the user holds no permission at all for a
// resource and action. It is distinct from a computed scope of none: callers
// must treat it as "cannot access", never silently ignore it.
var ErrNoAccess = errors.New("no access")

// NoAccessError is returned by AccessScopeFor when the user holds no
// permission matching the resource and action. It never reveals which
// organizations or resources exist.
type NoAccessError struct {
	Resource Resource
	Action   Action
}

func (e *NoAccessError) Error() string {
	return fmt.Sprintf("no %s permission for %s", e.Action, e.Resource)
}

func (e *NoAccessError) Unwrap() error {
	return ErrNoAccess
}

// PermissionDeniedError is raised when a service-level check fails. It
// carries enough context for audit logging; the HTTP boundary maps it to a
// generic forbidden response.
type PermissionDeniedError struct {
	Permission string
	ResourceID string
}

func (e *PermissionDeniedError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("permission denied: %s on resource %s", e.Permission, e.ResourceID)
	}
	return fmt.Sprintf("permission denied: %s", e.Permission)
}

// ResourceOutOfScopeError is raised when the user holds a scoped grant but
// the specific resource belongs to an owner or organization outside the
// resolved set. The HTTP boundary surfaces it as not-found, never forbidden,
// to avoid confirming the resource's existence to an unauthorized tenant.
type ResourceOutOfScopeError struct {
	ResourceID string
	Permission string
}

func (e *ResourceOutOfScopeError) Error() string {
	return fmt.Sprintf("resource %s is outside the caller's visibility scope", e.ResourceID)
}

// IsPermissionDenied reports whether err is a permission denial (including
// the no-access condition).
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied) || errors.Is(err, ErrNoAccess)
}

// IsResourceOutOfScope reports whether err marks a resource outside the
// caller's visibility scope.
func IsResourceOutOfScope(err error) bool {
	var oos *ResourceOutOfScopeError
	return errors.As(err, &oos)
}
