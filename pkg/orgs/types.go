package orgs

import "time"

// OrgStatus represents organization status
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusDeleted   OrgStatus = "deleted"
)

// Organization represents a tenant or sub-tenant unit. Organizations form a
// tree via ParentOrganizationID; visibility granted on a parent extends to
// every descendant.
type Organization struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	DisplayName          string    `json:"display_name"`
	Description          string    `json:"description,omitempty"`
	ParentOrganizationID *string   `json:"parent_organization_id,omitempty"`
	Status               OrgStatus `json:"status"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// WarningKind classifies hierarchy integrity problems found while building
// or traversing the organization tree.
type WarningKind string

const (
	WarningCycle          WarningKind = "cycle"
	WarningDanglingParent WarningKind = "dangling_parent"
)

// Warning records a hierarchy integrity problem. Traversal always terminates
// regardless; warnings exist for operational follow-up.
type Warning struct {
	Kind           WarningKind `json:"kind"`
	OrganizationID string      `json:"organization_id"`
	Detail         string      `json:"detail"`
}
