package models

import "github.com/google/uuid"

// Role represents a caller's authorization level.
type Role string

const (
	// RoleSuperAdmin may query any organization's schema. Every such
	// cross-tenant access is audited.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin manages its own organization only.
	RoleAdmin Role = "admin"
	// RoleMember is a regular user within its own organization.
	RoleMember Role = "member"
)

// Caller is the authenticated identity on whose behalf a query runs.
// It is produced by the identity collaborator (session middleware) and
// consumed by the tenant resolver for authorization decisions.
type Caller struct {
	UserID uuid.UUID
	OrgID  uuid.UUID // the organization the caller belongs to
	Role   Role
}

// IsSuperAdmin reports whether the caller may cross tenant boundaries.
func (c Caller) IsSuperAdmin() bool {
	return c.Role == RoleSuperAdmin
}
