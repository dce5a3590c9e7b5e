package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
)

// entry pairs a hook with the plugin name for logging.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
//
// Register is not safe to call concurrently with the Emit methods; register
// every plugin before serving traffic.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeAuthorize   []entry[BeforeAuthorize]
	afterAuthorize    []entry[AfterAuthorize]
	danglingReference []entry[DanglingReference]
	permissionCreated []entry[PermissionCreated]
	permissionUpdated []entry[PermissionUpdated]
	permissionDeleted []entry[PermissionDeleted]
	roleCreated       []entry[RoleCreated]
	roleUpdated       []entry[RoleUpdated]
	roleDeleted       []entry[RoleDeleted]
	overrideUpdated   []entry[OverrideUpdated]
	overrideDeleted   []entry[OverrideDeleted]
	actorUpdated      []entry[ActorUpdated]
	catalogSeeded     []entry[CatalogSeeded]
	shutdown          []entry[Shutdown]
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeAuthorize); ok {
		r.beforeAuthorize = append(r.beforeAuthorize, entry[BeforeAuthorize]{name, h})
	}
	if h, ok := p.(AfterAuthorize); ok {
		r.afterAuthorize = append(r.afterAuthorize, entry[AfterAuthorize]{name, h})
	}
	if h, ok := p.(DanglingReference); ok {
		r.danglingReference = append(r.danglingReference, entry[DanglingReference]{name, h})
	}
	if h, ok := p.(PermissionCreated); ok {
		r.permissionCreated = append(r.permissionCreated, entry[PermissionCreated]{name, h})
	}
	if h, ok := p.(PermissionUpdated); ok {
		r.permissionUpdated = append(r.permissionUpdated, entry[PermissionUpdated]{name, h})
	}
	if h, ok := p.(PermissionDeleted); ok {
		r.permissionDeleted = append(r.permissionDeleted, entry[PermissionDeleted]{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, entry[RoleCreated]{name, h})
	}
	if h, ok := p.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, entry[RoleUpdated]{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, entry[RoleDeleted]{name, h})
	}
	if h, ok := p.(OverrideUpdated); ok {
		r.overrideUpdated = append(r.overrideUpdated, entry[OverrideUpdated]{name, h})
	}
	if h, ok := p.(OverrideDeleted); ok {
		r.overrideDeleted = append(r.overrideDeleted, entry[OverrideDeleted]{name, h})
	}
	if h, ok := p.(ActorUpdated); ok {
		r.actorUpdated = append(r.actorUpdated, entry[ActorUpdated]{name, h})
	}
	if h, ok := p.(CatalogSeeded); ok {
		r.catalogSeeded = append(r.catalogSeeded, entry[CatalogSeeded]{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Decision event emitters
// ──────────────────────────────────────────────────

// EmitBeforeAuthorize notifies all plugins that implement BeforeAuthorize.
func (r *Registry) EmitBeforeAuthorize(ctx context.Context, actorID string, req any) {
	for _, e := range r.beforeAuthorize {
		if err := e.hook.OnBeforeAuthorize(ctx, actorID, req); err != nil {
			r.logHookError("OnBeforeAuthorize", e.name, err)
		}
	}
}

// EmitAfterAuthorize notifies all plugins that implement AfterAuthorize.
func (r *Registry) EmitAfterAuthorize(ctx context.Context, actorID string, req, result any) {
	for _, e := range r.afterAuthorize {
		if err := e.hook.OnAfterAuthorize(ctx, actorID, req, result); err != nil {
			r.logHookError("OnAfterAuthorize", e.name, err)
		}
	}
}

// EmitDanglingReference notifies all plugins that implement DanglingReference.
func (r *Registry) EmitDanglingReference(ctx context.Context, actorID, kind, ref string) {
	for _, e := range r.danglingReference {
		if err := e.hook.OnDanglingReference(ctx, actorID, kind, ref); err != nil {
			r.logHookError("OnDanglingReference", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Permission event emitters
// ──────────────────────────────────────────────────

// EmitPermissionCreated notifies all plugins that implement PermissionCreated.
func (r *Registry) EmitPermissionCreated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionCreated {
		if err := e.hook.OnPermissionCreated(ctx, p); err != nil {
			r.logHookError("OnPermissionCreated", e.name, err)
		}
	}
}

// EmitPermissionUpdated notifies all plugins that implement PermissionUpdated.
func (r *Registry) EmitPermissionUpdated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionUpdated {
		if err := e.hook.OnPermissionUpdated(ctx, p); err != nil {
			r.logHookError("OnPermissionUpdated", e.name, err)
		}
	}
}

// EmitPermissionDeleted notifies all plugins that implement PermissionDeleted.
func (r *Registry) EmitPermissionDeleted(ctx context.Context, permID id.PermissionID) {
	for _, e := range r.permissionDeleted {
		if err := e.hook.OnPermissionDeleted(ctx, permID); err != nil {
			r.logHookError("OnPermissionDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all plugins that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Override and actor event emitters
// ──────────────────────────────────────────────────

// EmitOverrideUpdated notifies all plugins that implement OverrideUpdated.
func (r *Registry) EmitOverrideUpdated(ctx context.Context, u *override.UserPermission) {
	for _, e := range r.overrideUpdated {
		if err := e.hook.OnOverrideUpdated(ctx, u); err != nil {
			r.logHookError("OnOverrideUpdated", e.name, err)
		}
	}
}

// EmitOverrideDeleted notifies all plugins that implement OverrideDeleted.
func (r *Registry) EmitOverrideDeleted(ctx context.Context, userID string) {
	for _, e := range r.overrideDeleted {
		if err := e.hook.OnOverrideDeleted(ctx, userID); err != nil {
			r.logHookError("OnOverrideDeleted", e.name, err)
		}
	}
}

// EmitActorUpdated notifies all plugins that implement ActorUpdated.
func (r *Registry) EmitActorUpdated(ctx context.Context, a *actor.Actor) {
	for _, e := range r.actorUpdated {
		if err := e.hook.OnActorUpdated(ctx, a); err != nil {
			r.logHookError("OnActorUpdated", e.name, err)
		}
	}
}

// EmitCatalogSeeded notifies all plugins that implement CatalogSeeded.
func (r *Registry) EmitCatalogSeeded(ctx context.Context, permissions, roles int) {
	for _, e := range r.catalogSeeded {
		if err := e.hook.OnCatalogSeeded(ctx, permissions, roles); err != nil {
			r.logHookError("OnCatalogSeeded", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
