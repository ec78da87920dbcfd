package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypePermissionCheck  EventType = "authz.permission_check"
	EventTypeAccessDenied     EventType = "authz.access_denied"
	EventTypeSuperAdminBypass EventType = "authz.superadmin_bypass"
	EventTypeScopeFailClosed  EventType = "authz.scope_failclosed"
	EventTypeRoleChange       EventType = "authz.role_change"
	EventTypeRoleAssignment   EventType = "authz.role_assignment"
	EventTypeRoleRevocation   EventType = "authz.role_revocation"

	// Hierarchy events
	EventTypeHierarchyWarning EventType = "hierarchy.integrity_warning"

	// Data mutation events
	EventTypeOrgCreate      EventType = "data.org_create"
	EventTypeOrgUpdate      EventType = "data.org_update"
	EventTypeWorkItemCreate EventType = "data.work_item_create"
	EventTypeWorkItemUpdate EventType = "data.work_item_update"
	EventTypeWorkItemDelete EventType = "data.work_item_delete"
)

// Decision represents the outcome of an audited operation
type Decision string

const (
	DecisionGranted Decision = "granted"
	DecisionDenied  Decision = "denied"
	DecisionBypass  Decision = "bypass"
	DecisionError   Decision = "error"
)

// Event represents a single audit log entry
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	Decision  Decision  `json:"decision"`

	// Actor
	UserID         string `json:"user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`

	// Subject
	Resource   string `json:"resource,omitempty"`
	Action     string `json:"action,omitempty"`
	Permission string `json:"permission,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit events
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID         string
	OrganizationID string
	EventTypes     []EventType
	Decision       *Decision
	Resource       string
	ResourceID     string

	Limit  int
	Offset int
}
