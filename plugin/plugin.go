// Package plugin defines the plugin system for portcullis.
// Plugins are notified of lifecycle events (decision made, role updated,
// dangling reference found, etc.) and can react with audit records,
// metrics or alerts.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about. Hooks never influence a decision.
package plugin

import (
	"context"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeAuthorize is called before a request is evaluated.
// The req parameter is *portcullis.Request (passed as any to avoid import cycle).
type BeforeAuthorize interface {
	OnBeforeAuthorize(ctx context.Context, actorID string, req any) error
}

// AfterAuthorize is called after a decision is made. It is not called for
// cache hits or cancelled evaluations.
// The req parameter is *portcullis.Request; result is *portcullis.Result.
type AfterAuthorize interface {
	OnAfterAuthorize(ctx context.Context, actorID string, req, result any) error
}

// DanglingReference is called when an evaluation meets a role or permission
// id that no longer resolves. Kind is "role" or "permission".
type DanglingReference interface {
	OnDanglingReference(ctx context.Context, actorID, kind, ref string) error
}

// ──────────────────────────────────────────────────
// Permission lifecycle hooks
// ──────────────────────────────────────────────────

// PermissionCreated is called after a permission is created.
type PermissionCreated interface {
	OnPermissionCreated(ctx context.Context, p *permission.Permission) error
}

// PermissionUpdated is called after a permission is updated.
type PermissionUpdated interface {
	OnPermissionUpdated(ctx context.Context, p *permission.Permission) error
}

// PermissionDeleted is called after a permission is deleted.
type PermissionDeleted interface {
	OnPermissionDeleted(ctx context.Context, permID id.PermissionID) error
}

// ──────────────────────────────────────────────────
// Role lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role or its permission set is updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role is deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Override and actor lifecycle hooks
// ──────────────────────────────────────────────────

// OverrideUpdated is called after a user permission record is saved.
type OverrideUpdated interface {
	OnOverrideUpdated(ctx context.Context, u *override.UserPermission) error
}

// OverrideDeleted is called after a user permission record is deleted.
type OverrideDeleted interface {
	OnOverrideDeleted(ctx context.Context, userID string) error
}

// ActorUpdated is called after an actor profile is created or changed.
type ActorUpdated interface {
	OnActorUpdated(ctx context.Context, a *actor.Actor) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// CatalogSeeded is called after the default catalog is installed.
// The counts cover records actually created, not ones already present.
type CatalogSeeded interface {
	OnCatalogSeeded(ctx context.Context, permissions, roles int) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
