package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the role a user holds within their company.
type Role string

// Supported roles.
const (
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// Capability is a named skill held by a worker. Level ranges from 1 to 5 and
// is informational; assignment eligibility only checks presence.
type Capability struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// User is the projection of the external user directory the engine needs.
type User struct {
	ID           uuid.UUID    `json:"id"`
	CompanyID    uuid.UUID    `json:"company_id"`
	Name         string       `json:"name"`
	Role         Role         `json:"role"`
	Department   string       `json:"department,omitempty"`
	IsActive     bool         `json:"is_active"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// IsActiveWorker reports whether u can receive tasks.
func (u *User) IsActiveWorker() bool {
	return u.IsActive && u.Role == RoleWorker
}

// IsActiveManager reports whether u can receive delegations.
func (u *User) IsActiveManager() bool {
	return u.IsActive && u.Role == RoleManager
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}

// System returns an actor for engine-initiated operations in a company.
func System(companyID uuid.UUID) Actor {
	return Actor{CompanyID: companyID, Role: RoleAdmin}
}

// IsSystem reports whether the actor is the engine itself.
func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil
}

// IsManagerial reports whether the actor is a manager or an admin.
func (a Actor) IsManagerial() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

// NormalizeCapabilityName lowercases a capability name and collapses
// surrounding and inner whitespace.
func NormalizeCapabilityName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
