package role

import (
	"context"

	"github.com/xraph/portcullis/id"
)

// Reader is the read side of the role registry used during evaluation.
type Reader interface {
	// GetRole retrieves a role, including its permission set, by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (*Role, error)
}

// Store defines persistence operations for roles.
type Store interface {
	Reader

	// CreateRole persists a new role together with its permission set.
	CreateRole(ctx context.Context, r *Role) error

	// UpdateRole persists changes to a role, replacing its permission set.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role. Actors and overrides that reference it
	// are left untouched.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter, highest level first.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// AttachPermission adds a permission to a role's set.
	AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// DetachPermission removes a permission from a role's set.
	DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error
}
