package rbac

import (
	"fmt"
	"strings"
	"time"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceStaff         Resource = "staff"
	ResourceWorkItems     Resource = "work-items"
	ResourceAnalytics     Resource = "analytics"
	ResourceRoles         Resource = "roles"
	ResourceAnnouncements Resource = "announcements"
	ResourceSecurity      Resource = "security"
	ResourceOrganizations Resource = "organizations"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
	ActionExport Action = "export"
	ActionAssign Action = "assign"
)

// AccessScope is the breadth of data a granted permission exposes. The
// ordering is total and fixed: all > organization > own > none. When a user
// holds several grants for the same resource and action the widest one wins.
type AccessScope string

const (
	ScopeNone         AccessScope = "none"
	ScopeOwn          AccessScope = "own"
	ScopeOrganization AccessScope = "organization"
	ScopeAll          AccessScope = "all"
)

// rank orders scopes for widest-wins comparison
func (s AccessScope) rank() int {
	switch s {
	case ScopeAll:
		return 3
	case ScopeOrganization:
		return 2
	case ScopeOwn:
		return 1
	default:
		return 0
	}
}

// Wider reports whether s grants broader visibility than other
func (s AccessScope) Wider(other AccessScope) bool {
	return s.rank() > other.rank()
}

// ParseScope parses a scope token. Only the three grantable scopes are legal
// in permission names; "none" is a computed result, never a grant.
func ParseScope(token string) (AccessScope, error) {
	switch AccessScope(token) {
	case ScopeOwn, ScopeOrganization, ScopeAll:
		return AccessScope(token), nil
	default:
		return ScopeNone, fmt.Errorf("invalid permission scope %q", token)
	}
}

// Permission is an atomic grant, named <resource>:<action>:<scope>. The
// string form is the wire contract between role configuration and the
// checker; every component issuing or storing permission names must conform
// to the three-token grammar.
type Permission struct {
	Resource Resource    `json:"resource"`
	Action   Action      `json:"action"`
	Scope    AccessScope `json:"scope"`
}

// Name returns the canonical string form of the permission
func (p Permission) Name() string {
	return string(p.Resource) + ":" + string(p.Action) + ":" + string(p.Scope)
}

// ParsePermission parses a permission name. A name is exactly three
// non-empty colon-separated tokens; the scope token must be one of the
// grantable scopes. Validation happens here, at configuration-load time,
// rather than ad hoc at every check.
func ParsePermission(name string) (Permission, error) {
	tokens := strings.Split(name, ":")
	if len(tokens) != 3 {
		return Permission{}, fmt.Errorf("invalid permission name %q: expected <resource>:<action>:<scope>", name)
	}
	for _, token := range tokens {
		if token == "" {
			return Permission{}, fmt.Errorf("invalid permission name %q: empty token", name)
		}
	}

	scope, err := ParseScope(tokens[2])
	if err != nil {
		return Permission{}, fmt.Errorf("invalid permission name %q: %w", name, err)
	}

	return Permission{
		Resource: Resource(tokens[0]),
		Action:   Action(tokens[1]),
		Scope:    scope,
	}, nil
}

// PermissionName builds the canonical name for a resource/action/scope triple
func PermissionName(resource Resource, action Action, scope AccessScope) string {
	return Permission{Resource: resource, Action: action, Scope: scope}.Name()
}

// Role is a named bundle of permissions. A nil OrganizationID marks a
// global/system role; otherwise the role belongs to one organization.
type Role struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	DisplayName    string       `json:"display_name"`
	Description    string       `json:"description,omitempty"`
	OrganizationID *string      `json:"organization_id,omitempty"`
	IsSystemRole   bool         `json:"is_system_role"`
	IsOrgAdmin     bool         `json:"is_org_admin"`
	Permissions    []Permission `json:"permissions"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CreatedBy      *string      `json:"created_by,omitempty"`
}

// HasPermission reports whether the role carries the named permission
func (r Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// UserRoleAssignment binds a user to a role, optionally scoped to one
// organization, with optional expiry.
type UserRoleAssignment struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	RoleID         string     `json:"role_id"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	GrantedBy      *string    `json:"granted_by,omitempty"`
	GrantedAt      time.Time  `json:"granted_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Effective reports whether the assignment is active and unexpired at now
func (a UserRoleAssignment) Effective(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Membership records a user's direct membership in an organization
type Membership struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	IsActive       bool      `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`
}
