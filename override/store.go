package override

import "context"

// Reader is the read side of the override store used during evaluation.
type Reader interface {
	// GetUserPermission retrieves the override record for an actor.
	GetUserPermission(ctx context.Context, userID string) (*UserPermission, error)
}

// Store defines persistence operations for override records.
type Store interface {
	Reader

	// SaveUserPermission creates or replaces the override record for
	// u.UserID.
	SaveUserPermission(ctx context.Context, u *UserPermission) error

	// DeleteUserPermission removes the override record for an actor.
	DeleteUserPermission(ctx context.Context, userID string) error

	// ListUserPermissions returns override records matching the filter.
	ListUserPermissions(ctx context.Context, filter *ListFilter) ([]*UserPermission, error)
}
