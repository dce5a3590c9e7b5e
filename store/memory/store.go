// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing, development and single-node
// deployments seeded at startup.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
)

// Compile-time interface checks.
var (
	_ store.Store       = (*Store)(nil)
	_ permission.Store  = (*Store)(nil)
	_ role.Store        = (*Store)(nil)
	_ override.Store    = (*Store)(nil)
	_ actor.Store       = (*Store)(nil)
	_ decisionlog.Store = (*Store)(nil)
	_ store.Reader      = (*snapshot)(nil)
)

// Store is a thread-safe in-memory store for all entities.
type Store struct {
	mu sync.RWMutex

	permissions  map[string]*permission.Permission
	roles        map[string]*role.Role
	overrides    map[string]*override.UserPermission
	actors       map[string]*actor.Actor
	decisionLogs map[string]*decisionlog.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		permissions:  make(map[string]*permission.Permission),
		roles:        make(map[string]*role.Role),
		overrides:    make(map[string]*override.UserPermission),
		actors:       make(map[string]*actor.Actor),
		decisionLogs: make(map[string]*decisionlog.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ReadSnapshot holds the read lock for the duration of fn, so every read
// made through the Reader observes the same state.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&snapshot{s: s})
}

// snapshot reads the maps without locking; the owning ReadSnapshot call
// holds the read lock.
type snapshot struct{ s *Store }

func (r *snapshot) GetActorRoleName(ctx context.Context, actorID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.s.actorRoleName(actorID)
}

func (r *snapshot) GetUserPermission(ctx context.Context, userID string) (*override.UserPermission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.userPermission(userID)
}

func (r *snapshot) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.role(roleID)
}

func (r *snapshot) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.roleByName(name)
}

func (r *snapshot) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.permission(permID)
}

func (r *snapshot) ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.s.permissionsByIDs(ids), nil
}

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Name == p.Name {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
	}
	s.permissions[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permission(permID)
}

func (s *Store) permission(permID id.PermissionID) (*permission.Permission, error) {
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) GetPermissionByName(_ context.Context, name string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("permission name %q: %w", name, store.ErrNotFound)
}

func (s *Store) ListPermissionsByIDs(_ context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionsByIDs(ids), nil
}

func (s *Store) permissionsByIDs(ids []id.PermissionID) []*permission.Permission {
	result := make([]*permission.Permission, 0, len(ids))
	for _, pid := range ids {
		if p, ok := s.permissions[pid.String()]; ok {
			result = append(result, p.Clone())
		}
	}
	return result
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrNotFound)
	}
	for k, existing := range s.permissions {
		if k != p.ID.String() && existing.Name == p.Name {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
	}
	s.permissions[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) DeletePermission(_ context.Context, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[permID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	delete(s.permissions, permID.String())
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.Module != "" && p.Module != filter.Module {
				continue
			}
			if filter.Action != "" && !p.Allows(filter.Action) {
				continue
			}
			if filter.IsSystem != nil && p.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !containsFold(p.Name, filter.Search) {
				continue
			}
		}
		result = append(result, p.Clone())
	}
	slices.SortFunc(result, func(a, b *permission.Permission) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.Name, b.Name))
	})
	return applyPagination(result, permPagination(filter)), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	var unpaged *permission.ListFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListPermissions(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
	}
	s.roles[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role(roleID)
}

func (s *Store) role(roleID id.RoleID) (*role.Role, error) {
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleByName(name)
}

func (s *Store) roleByName(name string) (*role.Role, error) {
	for _, r := range s.roles {
		if r.Name == name {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("role name %q: %w", name, store.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	for k, existing := range s.roles {
		if k != r.ID.String() && existing.Name == r.Name {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
	}
	s.roles[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	delete(s.roles, roleID.String())
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !containsFold(r.Name, filter.Search) {
				continue
			}
		}
		result = append(result, r.Clone())
	}
	slices.SortFunc(result, func(a, b *role.Role) int {
		return cmp.Or(cmp.Compare(b.Level, a.Level), cmp.Compare(a.Name, b.Name))
	})
	return applyPagination(result, rolePagination(filter)), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	var unpaged *role.ListFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListRoles(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) AttachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	if !r.HasPermission(permID) {
		r.Permissions = append(r.Permissions, permID)
		r.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) DetachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	if i := slices.Index(r.Permissions, permID); i >= 0 {
		r.Permissions = slices.Delete(r.Permissions, i, i+1)
		r.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Override Store
// ──────────────────────────────────────────────────

func (s *Store) GetUserPermission(_ context.Context, userID string) (*override.UserPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userPermission(userID)
}

func (s *Store) userPermission(userID string) (*override.UserPermission, error) {
	u, ok := s.overrides[userID]
	if !ok {
		return nil, fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *Store) SaveUserPermission(_ context.Context, u *override.UserPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[u.UserID] = u.Clone()
	return nil
}

func (s *Store) DeleteUserPermission(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.overrides[userID]; !ok {
		return fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
	}
	delete(s.overrides, userID)
	return nil
}

func (s *Store) ListUserPermissions(_ context.Context, filter *override.ListFilter) ([]*override.UserPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*override.UserPermission, 0, len(s.overrides))
	for _, u := range s.overrides {
		if filter != nil {
			if filter.RoleID != nil && u.RoleID != *filter.RoleID {
				continue
			}
			if filter.PermissionID != nil && !slices.Contains(u.ReferencedPermissions(), *filter.PermissionID) {
				continue
			}
		}
		result = append(result, u.Clone())
	}
	slices.SortFunc(result, func(a, b *override.UserPermission) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return applyPagination(result, overridePagination(filter)), nil
}

// ──────────────────────────────────────────────────
// Actor Store
// ──────────────────────────────────────────────────

func (s *Store) CreateActor(_ context.Context, a *actor.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[a.ID]; ok {
		return fmt.Errorf("actor %q: %w", a.ID, store.ErrDuplicate)
	}
	s.actors[a.ID] = copyActor(a)
	return nil
}

func (s *Store) GetActor(_ context.Context, actorID string) (*actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[actorID]
	if !ok {
		return nil, fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
	}
	return copyActor(a), nil
}

func (s *Store) GetActorRoleName(_ context.Context, actorID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorRoleName(actorID)
}

func (s *Store) actorRoleName(actorID string) (string, error) {
	a, ok := s.actors[actorID]
	if !ok {
		return "", fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
	}
	return a.RoleName, nil
}

func (s *Store) UpdateActor(_ context.Context, a *actor.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[a.ID]; !ok {
		return fmt.Errorf("actor %q: %w", a.ID, store.ErrNotFound)
	}
	s.actors[a.ID] = copyActor(a)
	return nil
}

func (s *Store) DeleteActor(_ context.Context, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[actorID]; !ok {
		return fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
	}
	delete(s.actors, actorID)
	return nil
}

func (s *Store) ListActors(_ context.Context, filter *actor.ListFilter) ([]*actor.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*actor.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		if filter != nil {
			if filter.RoleName != "" && a.RoleName != filter.RoleName {
				continue
			}
			if filter.Search != "" && !containsFold(a.DisplayName, filter.Search) && !containsFold(a.Email, filter.Search) {
				continue
			}
		}
		result = append(result, copyActor(a))
	}
	slices.SortFunc(result, func(a, b *actor.Actor) int { return cmp.Compare(a.ID, b.ID) })
	return applyPagination(result, actorPagination(filter)), nil
}

// ──────────────────────────────────────────────────
// Decision Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateDecisionLog(_ context.Context, e *decisionlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisionLogs[e.ID.String()] = copyDecisionLog(e)
	return nil
}

func (s *Store) GetDecisionLog(_ context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.decisionLogs[logID.String()]
	if !ok {
		return nil, fmt.Errorf("decision log %s: %w", logID, store.ErrNotFound)
	}
	return copyDecisionLog(e), nil
}

func (s *Store) ListDecisionLogs(_ context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*decisionlog.Entry, 0, len(s.decisionLogs))
	for _, e := range s.decisionLogs {
		if filter != nil {
			if filter.ActorID != "" && e.ActorID != filter.ActorID {
				continue
			}
			if filter.Module != "" && e.Module != filter.Module {
				continue
			}
			if filter.Reason != "" && e.Reason != filter.Reason {
				continue
			}
			if filter.Granted != nil && e.Granted != *filter.Granted {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyDecisionLog(e))
	}
	slices.SortFunc(result, func(a, b *decisionlog.Entry) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID.String(), a.ID.String()))
	})
	return applyPagination(result, logPagination(filter)), nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	var unpaged *decisionlog.QueryFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListDecisionLogs(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeDecisionLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.decisionLogs {
		if e.CreatedAt.Before(before) {
			delete(s.decisionLogs, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyActor(a *actor.Actor) *actor.Actor {
	c := *a
	return &c
}

func copyDecisionLog(e *decisionlog.Entry) *decisionlog.Entry {
	c := *e
	return &c
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type pagOpts struct{ limit, offset int }

func permPagination(f *permission.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func rolePagination(f *role.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func overridePagination(f *override.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func actorPagination(f *actor.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func logPagination(f *decisionlog.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 {
		if p.offset >= len(items) {
			return nil
		}
		items = items[p.offset:]
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}
