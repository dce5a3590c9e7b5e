package portcullis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
)

// view is everything one evaluation reads, taken from a single snapshot.
// It is never mutated after load returns.
type view struct {
	actorID  string
	roleName string
	override *override.UserPermission
	role     *role.Role
	perms    map[string]*permission.Permission
}

func (v *view) permission(pid id.PermissionID) (*permission.Permission, bool) {
	p, ok := v.perms[pid.String()]
	return p, ok
}

// danglingRef is a stored id that no longer resolves.
type danglingRef struct {
	kind  string
	ref   string
	owner string
}

const (
	danglingRole       = "role"
	danglingPermission = "permission"
)

// load reads the actor's view inside one store snapshot.
func (e *Engine) load(ctx context.Context, actorID string) (*view, []danglingRef, error) {
	var (
		v        *view
		dangling []danglingRef
	)
	read := func(r store.Reader) error {
		var err error
		v, dangling, err = e.loadFrom(ctx, r, actorID)
		return err
	}

	var err error
	if e.config.DisableSnapshot {
		err = read(e.store)
	} else {
		err = e.store.ReadSnapshot(ctx, read)
	}
	if err != nil {
		return nil, nil, err
	}
	return v, dangling, nil
}

// loadFrom fetches in two parallel phases: first the actor's role name and
// override record, then the role with its permissions alongside the
// permissions the override references. Superusers skip the second phase.
func (e *Engine) loadFrom(ctx context.Context, r store.Reader, actorID string) (*view, []danglingRef, error) {
	v := &view{
		actorID: actorID,
		perms:   make(map[string]*permission.Permission),
	}

	g, gctx := errgroup.WithContext(ctx)
	e.limit(g)
	g.Go(func() error {
		name, err := r.GetActorRoleName(gctx, actorID)
		if err != nil {
			if store.IsNotFound(err) {
				return fmt.Errorf("%w: %s", ErrActorNotFound, actorID)
			}
			return fmt.Errorf("%w: actor %s: %w", ErrStoreUnavailable, actorID, err)
		}
		v.roleName = name
		return nil
	})
	g.Go(func() error {
		u, err := r.GetUserPermission(gctx, actorID)
		switch {
		case err == nil:
			v.override = u
		case store.IsNotFound(err):
		default:
			return fmt.Errorf("%w: user permission %s: %w", ErrStoreUnavailable, actorID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if v.roleName == e.config.superuserRole() {
		return v, nil, nil
	}

	var (
		rolePerms     []*permission.Permission
		overridePerms []*permission.Permission
		missingRole   string
	)
	g, gctx = errgroup.WithContext(ctx)
	e.limit(g)
	g.Go(func() error {
		rl, err := e.resolveRole(gctx, r, v)
		if err != nil {
			if store.IsNotFound(err) {
				missingRole = roleRef(v)
				return nil
			}
			return err
		}
		v.role = rl
		if rl == nil || len(rl.Permissions) == 0 {
			return nil
		}
		rolePerms, err = r.ListPermissionsByIDs(gctx, rl.Permissions)
		if err != nil {
			return fmt.Errorf("%w: permissions of role %s: %w", ErrStoreUnavailable, rl.Name, err)
		}
		return nil
	})
	if v.override != nil {
		if refs := v.override.ReferencedPermissions(); len(refs) > 0 {
			g.Go(func() error {
				var err error
				overridePerms, err = r.ListPermissionsByIDs(gctx, refs)
				if err != nil {
					return fmt.Errorf("%w: permissions of user %s: %w", ErrStoreUnavailable, actorID, err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, p := range rolePerms {
		v.perms[p.ID.String()] = p
	}
	for _, p := range overridePerms {
		v.perms[p.ID.String()] = p
	}
	return v, v.dangling(missingRole), nil
}

// resolveRole finds the role by the override's role id when one is set and
// by the profile's role name otherwise. A nil role with a nil error means
// the actor has no role at all.
func (e *Engine) resolveRole(ctx context.Context, r store.Reader, v *view) (*role.Role, error) {
	if v.override != nil && !v.override.RoleID.IsNil() {
		rl, err := r.GetRole(ctx, v.override.RoleID)
		if err != nil && !store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: role %s: %w", ErrStoreUnavailable, v.override.RoleID, err)
		}
		return rl, err
	}
	if v.roleName == "" {
		return nil, nil //nolint:nilnil // no role is a valid outcome
	}
	rl, err := r.GetRoleByName(ctx, v.roleName)
	if err != nil && !store.IsNotFound(err) {
		return nil, fmt.Errorf("%w: role %q: %w", ErrStoreUnavailable, v.roleName, err)
	}
	return rl, err
}

func roleRef(v *view) string {
	if v.override != nil && !v.override.RoleID.IsNil() {
		return v.override.RoleID.String()
	}
	return v.roleName
}

// dangling lists every referenced id the view could not resolve.
func (v *view) dangling(missingRole string) []danglingRef {
	var out []danglingRef
	if missingRole != "" {
		out = append(out, danglingRef{kind: danglingRole, ref: missingRole, owner: "actor:" + v.actorID})
	}
	if v.role != nil {
		for _, pid := range v.role.Permissions {
			if _, ok := v.permission(pid); !ok {
				out = append(out, danglingRef{kind: danglingPermission, ref: pid.String(), owner: "role:" + v.role.Name})
			}
		}
	}
	if v.override != nil {
		for _, pid := range v.override.ReferencedPermissions() {
			if _, ok := v.permission(pid); !ok {
				out = append(out, danglingRef{kind: danglingPermission, ref: pid.String(), owner: "user_permission:" + v.actorID})
			}
		}
	}
	return out
}

func (e *Engine) limit(g *errgroup.Group) {
	if e.config.FetchConcurrency > 0 {
		g.SetLimit(e.config.FetchConcurrency)
	}
}
