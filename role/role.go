// Package role defines the Role entity and its store interface.
package role

import (
	"slices"
	"time"

	"github.com/xraph/portcullis/id"
)

// Role is a named, reusable bundle of permissions. Actors reference a role
// by id (through their override record) or by name (through their profile).
type Role struct {
	ID          id.RoleID         `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	Description string            `json:"description,omitempty" db:"description"`
	Permissions []id.PermissionID `json:"permissions" db:"-"`

	// Level ranks roles for display and ordering only.
	Level int `json:"level" db:"level"`

	IsSystem  bool      `json:"is_system" db:"is_system"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasPermission reports whether permID is in the role's set.
func (r *Role) HasPermission(permID id.PermissionID) bool {
	return slices.Contains(r.Permissions, permID)
}

// Clone returns a deep copy of r.
func (r *Role) Clone() *Role {
	cp := *r
	cp.Permissions = slices.Clone(r.Permissions)
	return &cp
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	IsSystem *bool  `json:"is_system,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
