package permission

import (
	"context"

	"github.com/xraph/portcullis/id"
)

// Reader is the read side of the permission catalog used during evaluation.
type Reader interface {
	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// ListPermissionsByIDs returns the permissions for ids. Ids that no
	// longer resolve are omitted rather than reported as errors.
	ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*Permission, error)
}

// Store defines persistence operations for permissions.
type Store interface {
	Reader

	// CreatePermission persists a new permission.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermissionByName retrieves a permission by its unique name.
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)

	// UpdatePermission persists changes to a permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// DeletePermission removes a permission. Roles and overrides that still
	// reference it are left untouched.
	DeletePermission(ctx context.Context, permID id.PermissionID) error

	// ListPermissions returns permissions matching the filter.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)
}
