// Package override defines the per-actor UserPermission record: explicit
// grants, explicit denials and resource-scoped grants layered on top of the
// actor's role.
package override

import (
	"slices"
	"time"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
)

// UserPermission is the override record for one actor. It is created lazily
// on the first explicit override and updated one entry at a time.
//
// A permission id listed in both CustomPermissions and RestrictedPermissions
// is treated as restricted.
type UserPermission struct {
	UserID                string               `json:"user_id" db:"user_id"`
	RoleID                id.RoleID            `json:"role_id" db:"role_id"`
	CustomPermissions     []id.PermissionID    `json:"custom_permissions" db:"custom_permissions"`
	RestrictedPermissions []id.PermissionID    `json:"restricted_permissions" db:"restricted_permissions"`
	ResourcePermissions   []ResourcePermission `json:"resource_permissions" db:"resource_permissions"`
	CreatedAt             time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at" db:"updated_at"`
}

// ResourcePermission scopes a grant of PermissionID to one resource instance,
// or to every instance of ResourceType when ResourceID is empty or "*".
// When Actions is non-empty it narrows the permission's actions further.
type ResourcePermission struct {
	ResourceType string          `json:"resource_type" bson:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	PermissionID id.PermissionID `json:"permission_id" bson:"permission_id"`
	Actions      []access.Action `json:"actions,omitempty" bson:"actions,omitempty"`
}

// Qualifier returns the resource scope of the grant.
func (rp ResourcePermission) Qualifier() access.Qualifier {
	return access.Qualifier{Type: rp.ResourceType, ID: rp.ResourceID}
}

// Same reports whether rp and other scope the same permission to the same
// resource, regardless of their action lists.
func (rp ResourcePermission) Same(other ResourcePermission) bool {
	return rp.PermissionID == other.PermissionID &&
		rp.ResourceType == other.ResourceType &&
		rp.Qualifier().String() == other.Qualifier().String()
}

// IsRestricted reports whether permID is explicitly denied.
func (u *UserPermission) IsRestricted(permID id.PermissionID) bool {
	return slices.Contains(u.RestrictedPermissions, permID)
}

// IsGranted reports whether permID is explicitly granted.
func (u *UserPermission) IsGranted(permID id.PermissionID) bool {
	return slices.Contains(u.CustomPermissions, permID)
}

// ReferencedPermissions returns every distinct permission id the record
// points at, in first-seen order.
func (u *UserPermission) ReferencedPermissions() []id.PermissionID {
	out := make([]id.PermissionID, 0, len(u.CustomPermissions)+len(u.RestrictedPermissions)+len(u.ResourcePermissions))
	add := func(pid id.PermissionID) {
		if !slices.Contains(out, pid) {
			out = append(out, pid)
		}
	}
	for _, pid := range u.RestrictedPermissions {
		add(pid)
	}
	for _, pid := range u.CustomPermissions {
		add(pid)
	}
	for _, rp := range u.ResourcePermissions {
		add(rp.PermissionID)
	}
	return out
}

// Clone returns a deep copy of u.
func (u *UserPermission) Clone() *UserPermission {
	cp := *u
	cp.CustomPermissions = slices.Clone(u.CustomPermissions)
	cp.RestrictedPermissions = slices.Clone(u.RestrictedPermissions)
	cp.ResourcePermissions = make([]ResourcePermission, len(u.ResourcePermissions))
	for i, rp := range u.ResourcePermissions {
		rp.Actions = slices.Clone(rp.Actions)
		cp.ResourcePermissions[i] = rp
	}
	return &cp
}

// ListFilter contains filters for listing override records.
type ListFilter struct {
	RoleID       *id.RoleID       `json:"role_id,omitempty"`
	PermissionID *id.PermissionID `json:"permission_id,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	Offset       int              `json:"offset,omitempty"`
}
