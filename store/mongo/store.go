// Package mongo provides a MongoDB implementation of the portcullis
// composite store using grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
)

// Collection name constants.
const (
	colPermissions     = "portcullis_permissions"
	colRoles           = "portcullis_roles"
	colUserPermissions = "portcullis_user_permissions"
	colActors          = "portcullis_actors"
	colDecisionLogs    = "portcullis_decision_logs"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all portcullis collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("portcullis/mongo: migrate %s indexes: %w", col, err)
		}
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

// ReadSnapshot passes the live store as the Reader. Reads are not isolated
// from concurrent writes; a decision may observe an override written
// between two of its reads.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all portcullis
// collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colPermissions: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "module", Value: 1}}},
			{Keys: bson.D{{Key: "actions", Value: 1}}},
		},
		colRoles: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "level", Value: -1}}},
		},
		colUserPermissions: {
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
			{Keys: bson.D{{Key: "custom_permissions", Value: 1}}},
			{Keys: bson.D{{Key: "restricted_permissions", Value: 1}}},
		},
		colActors: {
			{Keys: bson.D{{Key: "role_name", Value: 1}}},
		},
		colDecisionLogs: {
			{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "reason", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	t := now()
	p.CreatedAt = t
	p.UpdatedAt = t
	if _, err := s.mdb.NewInsert(permissionToModel(p)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get permission: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission name %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get permission by name: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	if len(ids) == 0 {
		return []*permission.Permission{}, nil
	}
	var models []permissionModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": id.Strings(ids)}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list permissions by ids: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	p.UpdatedAt = now()
	m := permissionToModel(p)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis: update permission: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	res, err := s.mdb.NewDelete((*permissionModel)(nil)).
		Filter(bson.M{"_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis: delete permission: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	return nil
}

func permissionFilter(filter *permission.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Module != "" {
		f["module"] = string(filter.Module)
	}
	if filter.Action != "" {
		f["actions"] = string(filter.Action)
	}
	if filter.IsSystem != nil {
		f["is_system"] = *filter.IsSystem
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	return f
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.mdb.NewFind(&models).
		Filter(permissionFilter(filter)).
		Sort(bson.D{{Key: "module", Value: 1}, {Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*permissionModel)(nil)).
		Filter(permissionFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	if _, err := s.mdb.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role name %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get role by name: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = now()
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis: update role: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	res, err := s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis: delete role: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return nil
}

func roleFilter(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.IsSystem != nil {
		f["is_system"] = *filter.IsSystem
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	return f
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.mdb.NewFind(&models).
		Filter(roleFilter(filter)).
		Sort(bson.D{{Key: "level", Value: -1}, {Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis: count roles: %w", err)
	}
	return count, nil
}

// AttachPermission rewrites the role document with the permission added.
func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.HasPermission(permID) {
		return nil
	}
	r.Permissions = append(r.Permissions, permID)
	return s.UpdateRole(ctx, r)
}

// DetachPermission rewrites the role document with the permission removed.
func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	kept := r.Permissions[:0]
	for _, pid := range r.Permissions {
		if pid != permID {
			kept = append(kept, pid)
		}
	}
	if len(kept) == len(r.Permissions) {
		return nil
	}
	r.Permissions = kept
	return s.UpdateRole(ctx, r)
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) GetUserPermission(ctx context.Context, userID string) (*override.UserPermission, error) {
	var m userPermissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get user permission: %w", err)
	}
	return userPermissionFromModel(&m), nil
}

// SaveUserPermission replaces the record, inserting it when absent. A
// concurrent first insert is resolved by retrying the replace.
func (s *Store) SaveUserPermission(ctx context.Context, u *override.UserPermission) error {
	t := now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t
	}
	u.UpdatedAt = t
	m := userPermissionToModel(u)

	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.UserID}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("portcullis: save user permission: %w", err)
		}
		if res.MatchedCount() > 0 {
			return nil
		}
		_, err = s.mdb.NewInsert(m).Exec(ctx)
		if err == nil {
			return nil
		}
		if !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("portcullis: save user permission: %w", err)
		}
	}
	return fmt.Errorf("portcullis: save user permission %q: concurrent insert", u.UserID)
}

func (s *Store) DeleteUserPermission(ctx context.Context, userID string) error {
	res, err := s.mdb.NewDelete((*userPermissionModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis: delete user permission: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("user permission %q: %w", userID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListUserPermissions(ctx context.Context, filter *override.ListFilter) ([]*override.UserPermission, error) {
	var models []userPermissionModel
	f := bson.M{}
	if filter != nil {
		if filter.RoleID != nil {
			f["role_id"] = filter.RoleID.String()
		}
		if filter.PermissionID != nil {
			pid := filter.PermissionID.String()
			f["$or"] = bson.A{
				bson.M{"custom_permissions": pid},
				bson.M{"restricted_permissions": pid},
				bson.M{"resource_permissions.permission_id": pid},
			}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list user permissions: %w", err)
	}
	result := make([]*override.UserPermission, len(models))
	for i := range models {
		result[i] = userPermissionFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Actor operations
// ──────────────────────────────────────────────────

func (s *Store) CreateActor(ctx context.Context, a *actor.Actor) error {
	t := now()
	a.CreatedAt = t
	a.UpdatedAt = t
	if _, err := s.mdb.NewInsert(actorToModel(a)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("actor %q: %w", a.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("portcullis: create actor: %w", err)
	}
	return nil
}

func (s *Store) GetActor(ctx context.Context, actorID string) (*actor.Actor, error) {
	var m actorModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": actorID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get actor: %w", err)
	}
	return actorFromModel(&m), nil
}

func (s *Store) GetActorRoleName(ctx context.Context, actorID string) (string, error) {
	a, err := s.GetActor(ctx, actorID)
	if err != nil {
		return "", err
	}
	return a.RoleName, nil
}

func (s *Store) UpdateActor(ctx context.Context, a *actor.Actor) error {
	a.UpdatedAt = now()
	m := actorToModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis: update actor: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("actor %q: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteActor(ctx context.Context, actorID string) error {
	res, err := s.mdb.NewDelete((*actorModel)(nil)).
		Filter(bson.M{"_id": actorID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("portcullis: delete actor: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("actor %q: %w", actorID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListActors(ctx context.Context, filter *actor.ListFilter) ([]*actor.Actor, error) {
	var models []actorModel
	f := bson.M{}
	if filter != nil {
		if filter.RoleName != "" {
			f["role_name"] = filter.RoleName
		}
		if filter.Search != "" {
			pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
			f["$or"] = bson.A{bson.M{"display_name": pattern}, bson.M{"email": pattern}}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list actors: %w", err)
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
		e.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(decisionLogToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("portcullis: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	var m decisionLogModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": logID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("decision log %s: %w", logID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("portcullis: get decision log: %w", err)
	}
	return decisionLogFromModel(&m), nil
}

func decisionLogFilter(filter *decisionlog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ActorID != "" {
		f["actor_id"] = filter.ActorID
	}
	if filter.Module != "" {
		f["module"] = filter.Module
	}
	if filter.Reason != "" {
		f["reason"] = filter.Reason
	}
	if filter.Granted != nil {
		f["granted"] = *filter.Granted
	}
	if filter.After != nil || filter.Before != nil {
		created := bson.M{}
		if filter.After != nil {
			created["$gte"] = *filter.After
		}
		if filter.Before != nil {
			created["$lte"] = *filter.Before
		}
		f["created_at"] = created
	}
	return f
}

func (s *Store) ListDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	var models []decisionLogModel
	q := s.mdb.NewFind(&models).
		Filter(decisionLogFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("portcullis: list decision logs: %w", err)
	}
	result := make([]*decisionlog.Entry, len(models))
	for i := range models {
		result[i] = decisionLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*decisionLogModel)(nil)).
		Filter(decisionLogFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis: count decision logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*decisionLogModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("portcullis: purge decision logs: %w", err)
	}
	return res.DeletedCount(), nil
}
