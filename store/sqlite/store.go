// Package sqlite provides a SQLite implementation of the portcullis
// composite store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

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
	_ store.Store  = (*Store)(nil)
	_ store.Reader = (*txReader)(nil)
)

// Store is a SQLite implementation of the composite store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("portcullis/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadSnapshot runs fn inside a read-only transaction. SQLite isolates a
// transaction from concurrent writers, so every query observes the same
// committed state.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(store.Reader) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, snapshotTxOptions())
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only transaction is always rolled back

	if err := fn(&txReader{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("portcullis/sqlite: end snapshot: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m, err := permissionToModel(p)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: create permission: %w", err)
	}
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis/sqlite: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.sdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get permission: %w", err)
	}
	return permissionFromModel(m)
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission name %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get permission by name: %w", err)
	}
	return permissionFromModel(m)
}

func (s *Store) ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	if len(ids) == 0 {
		return []*permission.Permission{}, nil
	}
	var models []permissionModel
	err := s.sdb.NewSelect(&models).Where("id IN (?)", id.Strings(ids)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list permissions by ids: %w", err)
	}
	return permissionsFromModels(models)
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	p.UpdatedAt = time.Now().UTC()
	m, err := permissionToModel(p)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: update permission: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis/sqlite: update permission: %w", err)
	}
	return affectedOrNotFound(res, "permission "+p.ID.String())
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	res, err := s.sdb.NewDelete((*permissionModel)(nil)).
		Where("id = ?", permID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: delete permission: %w", err)
	}
	return affectedOrNotFound(res, "permission "+permID.String())
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.sdb.NewSelect(&models).OrderExpr("module ASC, name ASC")
	if filter != nil {
		if filter.Module != "" {
			q = q.Where("module = ?", string(filter.Module))
		}
		if filter.Action != "" {
			q = q.Where("EXISTS (SELECT 1 FROM json_each(actions) WHERE json_each.value = ?)", string(filter.Action))
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list permissions: %w", err)
	}
	return permissionsFromModels(models)
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*permissionModel)(nil))
	if filter != nil {
		if filter.Module != "" {
			q = q.Where("module = ?", string(filter.Module))
		}
		if filter.Action != "" {
			q = q.Where("EXISTS (SELECT 1 FROM json_each(actions) WHERE json_each.value = ?)", string(filter.Action))
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis/sqlite: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis/sqlite: create role: %w", err)
	}
	if rps := rolePermissionModels(r); len(rps) > 0 {
		if _, err := tx.NewInsert(&rps).Exec(ctx); err != nil {
			return fmt.Errorf("portcullis/sqlite: create role permissions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("portcullis/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get role: %w", err)
	}
	return s.withPermissions(ctx, m)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role name %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get role by name: %w", err)
	}
	return s.withPermissions(ctx, m)
}

func (s *Store) withPermissions(ctx context.Context, m *roleModel) (*role.Role, error) {
	var rps []rolePermissionModel
	err := s.sdb.NewSelect(&rps).
		Where("role_id = ?", m.ID).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list role permissions: %w", err)
	}
	return roleFromModel(m, rps), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = time.Now().UTC()

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate(roleToModel(r)).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis/sqlite: update role: %w", err)
	}
	if err := affectedOrNotFound(res, "role "+r.ID.String()); err != nil {
		return err
	}

	// Replace the permission set.
	_, err = tx.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", r.ID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: clear role permissions: %w", err)
	}
	if rps := rolePermissionModels(r); len(rps) > 0 {
		if _, err := tx.NewInsert(&rps).Exec(ctx); err != nil {
			return fmt.Errorf("portcullis/sqlite: set role permissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("portcullis/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	res, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: delete role: %w", err)
	}
	return affectedOrNotFound(res, "role "+roleID.String())
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("level DESC, name ASC")
	if filter != nil {
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list roles: %w", err)
	}
	if len(models) == 0 {
		return []*role.Role{}, nil
	}

	roleIDs := make([]string, len(models))
	for i := range models {
		roleIDs[i] = models[i].ID
	}
	var rps []rolePermissionModel
	err := s.sdb.NewSelect(&rps).
		Where("role_id IN (?)", roleIDs).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list role permissions: %w", err)
	}
	byRole := make(map[string][]rolePermissionModel, len(models))
	for _, rp := range rps {
		byRole[rp.RoleID] = append(byRole[rp.RoleID], rp)
	}

	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i], byRole[models[i].ID])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis/sqlite: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return err
	}
	m := &rolePermissionModel{
		RoleID:       roleID.String(),
		PermissionID: permID.String(),
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return err
	}
	_, err := s.sdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: detach permission: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) GetUserPermission(ctx context.Context, userID string) (*override.UserPermission, error) {
	m := new(userPermissionModel)
	err := s.sdb.NewSelect(m).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get user permission: %w", err)
	}
	return userPermissionFromModel(m)
}

func (s *Store) SaveUserPermission(ctx context.Context, u *override.UserPermission) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m, err := userPermissionToModel(u)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: save user permission: %w", err)
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(user_id) DO UPDATE SET " +
			"role_id = excluded.role_id, " +
			"custom_permissions = excluded.custom_permissions, " +
			"restricted_permissions = excluded.restricted_permissions, " +
			"resource_permissions = excluded.resource_permissions, " +
			"updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: save user permission: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserPermission(ctx context.Context, userID string) error {
	res, err := s.sdb.NewDelete((*userPermissionModel)(nil)).
		Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: delete user permission: %w", err)
	}
	return affectedOrNotFound(res, "user permission "+userID)
}

func (s *Store) ListUserPermissions(ctx context.Context, filter *override.ListFilter) ([]*override.UserPermission, error) {
	var models []userPermissionModel
	q := s.sdb.NewSelect(&models).OrderExpr("user_id ASC")
	if filter != nil {
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.PermissionID != nil {
			pid := filter.PermissionID.String()
			q = q.Where("(custom_permissions LIKE ? OR restricted_permissions LIKE ? OR resource_permissions LIKE ?)",
				"%"+pid+"%", "%"+pid+"%", "%"+pid+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list user permissions: %w", err)
	}
	result := make([]*override.UserPermission, len(models))
	for i := range models {
		u, err := userPermissionFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("portcullis/sqlite: list user permissions: %w", err)
		}
		result[i] = u
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Actor operations
// ──────────────────────────────────────────────────

func (s *Store) CreateActor(ctx context.Context, a *actor.Actor) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.sdb.NewInsert(actorToModel(a)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("actor %q: %w", a.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis/sqlite: create actor: %w", err)
	}
	return nil
}

func (s *Store) GetActor(ctx context.Context, actorID string) (*actor.Actor, error) {
	m := new(actorModel)
	err := s.sdb.NewSelect(m).Where("id = ?", actorID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get actor: %w", err)
	}
	return actorFromModel(m), nil
}

func (s *Store) GetActorRoleName(ctx context.Context, actorID string) (string, error) {
	a, err := s.GetActor(ctx, actorID)
	if err != nil {
		return "", err
	}
	return a.RoleName, nil
}

func (s *Store) UpdateActor(ctx context.Context, a *actor.Actor) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := s.sdb.NewUpdate(actorToModel(a)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: update actor: %w", err)
	}
	return affectedOrNotFound(res, "actor "+a.ID)
}

func (s *Store) DeleteActor(ctx context.Context, actorID string) error {
	res, err := s.sdb.NewDelete((*actorModel)(nil)).
		Where("id = ?", actorID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: delete actor: %w", err)
	}
	return affectedOrNotFound(res, "actor "+actorID)
}

func (s *Store) ListActors(ctx context.Context, filter *actor.ListFilter) ([]*actor.Actor, error) {
	var models []actorModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.RoleName != "" {
			q = q.Where("role_name = ?", filter.RoleName)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(display_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?))",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list actors: %w", err)
	}
	result := make([]*actor.Actor, len(models))
	for i := range models {
		result[i] = actorFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Decision log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateDecisionLog(ctx context.Context, e *decisionlog.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.sdb.NewInsert(decisionLogToModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	m := new(decisionLogModel)
	err := s.sdb.NewSelect(m).Where("id = ?", logID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("decision log %s: %w", logID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get decision log: %w", err)
	}
	return decisionLogFromModel(m), nil
}

func (s *Store) ListDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	var models []decisionLogModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Module != "" {
			q = q.Where("module = ?", filter.Module)
		}
		if filter.Reason != "" {
			q = q.Where("reason = ?", filter.Reason)
		}
		if filter.Granted != nil {
			q = q.Where("granted = ?", *filter.Granted)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list decision logs: %w", err)
	}
	result := make([]*decisionlog.Entry, len(models))
	for i := range models {
		result[i] = decisionLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*decisionLogModel)(nil))
	if filter != nil {
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Module != "" {
			q = q.Where("module = ?", filter.Module)
		}
		if filter.Reason != "" {
			q = q.Where("reason = ?", filter.Reason)
		}
		if filter.Granted != nil {
			q = q.Where("granted = ?", *filter.Granted)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis/sqlite: count decision logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*decisionLogModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis/sqlite: purge decision logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("portcullis/sqlite: purge decision logs rows: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Snapshot reader
// ──────────────────────────────────────────────────

// txReader serves the evaluation reads from one transaction. A transaction
// owns a single connection, so concurrent callers take turns.
type txReader struct {
	mu sync.Mutex
	tx *sqlitedriver.SqliteTx
}

func (r *txReader) GetActorRoleName(ctx context.Context, actorID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := new(actorModel)
	err := r.tx.NewSelect(m).Where("id = ?", actorID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
		}
		return "", fmt.Errorf("portcullis/sqlite: get actor: %w", err)
	}
	return m.RoleName, nil
}

func (r *txReader) GetUserPermission(ctx context.Context, userID string) (*override.UserPermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := new(userPermissionModel)
	err := r.tx.NewSelect(m).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get user permission: %w", err)
	}
	return userPermissionFromModel(m)
}

func (r *txReader) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := new(roleModel)
	err := r.tx.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get role: %w", err)
	}
	return r.withPermissions(ctx, m)
}

func (r *txReader) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := new(roleModel)
	err := r.tx.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role name %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get role by name: %w", err)
	}
	return r.withPermissions(ctx, m)
}

// withPermissions expects r.mu to be held.
func (r *txReader) withPermissions(ctx context.Context, m *roleModel) (*role.Role, error) {
	var rps []rolePermissionModel
	err := r.tx.NewSelect(&rps).
		Where("role_id = ?", m.ID).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list role permissions: %w", err)
	}
	return roleFromModel(m, rps), nil
}

func (r *txReader) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := new(permissionModel)
	err := r.tx.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis/sqlite: get permission: %w", err)
	}
	return permissionFromModel(m)
}

func (r *txReader) ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	if len(ids) == 0 {
		return []*permission.Permission{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var models []permissionModel
	err := r.tx.NewSelect(&models).Where("id IN (?)", id.Strings(ids)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("portcullis/sqlite: list permissions by ids: %w", err)
	}
	return permissionsFromModels(models)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// snapshotTxOptions describes the transaction ReadSnapshot runs in. Every
// SQLite transaction is serializable; the level is stated for clarity.
func snapshotTxOptions() *driver.TxOptions {
	return &driver.TxOptions{IsolationLevel: driver.LevelSerializable, ReadOnly: true}
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func affectedOrNotFound(res rowsAffected, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("portcullis/sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}
