package auth

import "time"

// User represents a staff member or service account. Identity verification
// happens upstream (gateway / session layer); this subsystem only consumes
// the verified principal.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	FullName     string     `json:"full_name,omitempty"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Identity is the verified principal attached to every inbound request.
// It carries only what the upstream authentication layer established; role
// and organization resolution happens in pkg/rbac.
type Identity struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username,omitempty"`
	IsSuperAdmin bool   `json:"is_super_admin"`

	// CurrentOrganizationID is the organization the caller selected for this
	// session, if any. Empty means no organization context.
	CurrentOrganizationID string `json:"current_organization_id,omitempty"`
}

// Authenticated reports whether the identity carries a principal.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UserID != ""
}
