package workitems

import "time"

// Status is the lifecycle state of a work item
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether the status is one of the known states
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// WorkItem is a unit of work assigned within an organization. Every item
// belongs to exactly one organization and has exactly one owner; those two
// columns are what scoped visibility filters on.
type WorkItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Status         Status    `json:"status"`
	OrganizationID string    `json:"organization_id"`
	OwnerID        string    `json:"owner_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateInput is the caller-supplied portion of a new work item
type CreateInput struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	OrganizationID string `json:"organization_id"`
	OwnerID        string `json:"owner_id,omitempty"`
}

// UpdateInput holds the mutable fields of a work item. Nil fields are left
// unchanged.
type UpdateInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
}
