package rbac

import "sort"

// Catalog is the fixed vocabulary of permission names the system grants.
// Role configuration is validated against it at load time so malformed or
// unknown names are rejected before they can reach the checker.
type Catalog struct {
	names map[string]Permission
}

// DefaultCatalog returns the catalog of every permission the system defines:
// each resource/action pair at each of the three grantable scopes.
func DefaultCatalog() *Catalog {
	pairs := []struct {
		resource Resource
		actions  []Action
	}{
		{ResourceStaff, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{ResourceWorkItems, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign}},
		{ResourceAnalytics, []Action{ActionRead, ActionExport}},
		{ResourceRoles, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage, ActionAssign}},
		{ResourceAnnouncements, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}},
		{ResourceSecurity, []Action{ActionRead, ActionManage}},
		{ResourceOrganizations, []Action{ActionCreate, ActionRead, ActionUpdate, ActionManage}},
	}

	c := &Catalog{names: make(map[string]Permission)}
	for _, pair := range pairs {
		for _, action := range pair.actions {
			for _, scope := range []AccessScope{ScopeOwn, ScopeOrganization, ScopeAll} {
				p := Permission{Resource: pair.resource, Action: action, Scope: scope}
				c.names[p.Name()] = p
			}
		}
	}
	return c
}

// Contains reports whether the catalog defines the named permission
func (c *Catalog) Contains(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Lookup returns the parsed permission for a catalog name
func (c *Catalog) Lookup(name string) (Permission, bool) {
	p, ok := c.names[name]
	return p, ok
}

// Size returns the number of permissions in the catalog
func (c *Catalog) Size() int {
	return len(c.names)
}

// Names returns every catalog permission name, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in role names
const (
	RoleOrgAdmin        = "organization-admin"
	RolePracticeManager = "practice-manager"
	RoleStaffMember     = "staff-member"
	RoleAnalyticsViewer = "analytics-viewer"
	RoleSecurityAuditor = "security-auditor"
)

// BuiltInRoles returns the system role definitions seeded at install time.
// They are global (no organization) and cannot be edited by org admins.
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:         RoleOrgAdmin,
			DisplayName:  "Organization Admin",
			Description:  "Full access to the organization and its descendants",
			IsSystemRole: true,
			IsOrgAdmin:   true,
			IsActive:     true,
			Permissions: []Permission{
				{ResourceStaff, ActionCreate, ScopeOrganization},
				{ResourceStaff, ActionRead, ScopeOrganization},
				{ResourceStaff, ActionUpdate, ScopeOrganization},
				{ResourceStaff, ActionDelete, ScopeOrganization},
				{ResourceWorkItems, ActionCreate, ScopeOrganization},
				{ResourceWorkItems, ActionRead, ScopeOrganization},
				{ResourceWorkItems, ActionUpdate, ScopeOrganization},
				{ResourceWorkItems, ActionDelete, ScopeOrganization},
				{ResourceWorkItems, ActionAssign, ScopeOrganization},
				{ResourceAnalytics, ActionRead, ScopeOrganization},
				{ResourceAnalytics, ActionExport, ScopeOrganization},
				{ResourceRoles, ActionCreate, ScopeOrganization},
				{ResourceRoles, ActionRead, ScopeOrganization},
				{ResourceRoles, ActionUpdate, ScopeOrganization},
				{ResourceRoles, ActionDelete, ScopeOrganization},
				{ResourceRoles, ActionAssign, ScopeOrganization},
				{ResourceAnnouncements, ActionCreate, ScopeOrganization},
				{ResourceAnnouncements, ActionRead, ScopeOrganization},
				{ResourceAnnouncements, ActionUpdate, ScopeOrganization},
				{ResourceAnnouncements, ActionDelete, ScopeOrganization},
				{ResourceOrganizations, ActionRead, ScopeOrganization},
				{ResourceOrganizations, ActionUpdate, ScopeOrganization},
			},
		},
		{
			Name:         RolePracticeManager,
			DisplayName:  "Practice Manager",
			Description:  "Manages work items and staff within the organization",
			IsSystemRole: true,
			IsActive:     true,
			Permissions: []Permission{
				{ResourceStaff, ActionRead, ScopeOrganization},
				{ResourceWorkItems, ActionCreate, ScopeOrganization},
				{ResourceWorkItems, ActionRead, ScopeOrganization},
				{ResourceWorkItems, ActionUpdate, ScopeOrganization},
				{ResourceWorkItems, ActionAssign, ScopeOrganization},
				{ResourceAnalytics, ActionRead, ScopeOrganization},
				{ResourceAnnouncements, ActionRead, ScopeOrganization},
			},
		},
		{
			Name:         RoleStaffMember,
			DisplayName:  "Staff Member",
			Description:  "Works on own records only",
			IsSystemRole: true,
			IsActive:     true,
			Permissions: []Permission{
				{ResourceStaff, ActionRead, ScopeOwn},
				{ResourceStaff, ActionUpdate, ScopeOwn},
				{ResourceWorkItems, ActionCreate, ScopeOwn},
				{ResourceWorkItems, ActionRead, ScopeOwn},
				{ResourceWorkItems, ActionUpdate, ScopeOwn},
				{ResourceAnnouncements, ActionRead, ScopeOrganization},
			},
		},
		{
			Name:         RoleAnalyticsViewer,
			DisplayName:  "Analytics Viewer",
			Description:  "Read-only analytics access within the organization",
			IsSystemRole: true,
			IsActive:     true,
			Permissions: []Permission{
				{ResourceAnalytics, ActionRead, ScopeOrganization},
			},
		},
		{
			Name:         RoleSecurityAuditor,
			DisplayName:  "Security Auditor",
			Description:  "Read access to security configuration and audit data",
			IsSystemRole: true,
			IsActive:     true,
			Permissions: []Permission{
				{ResourceSecurity, ActionRead, ScopeAll},
				{ResourceRoles, ActionRead, ScopeAll},
				{ResourceOrganizations, ActionRead, ScopeAll},
			},
		},
	}
}
