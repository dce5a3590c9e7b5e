package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
)

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:portcullis_permissions"`
	ID              string    `grove:"id,pk"           bson:"_id"`
	Name            string    `grove:"name"            bson:"name"`
	Description     string    `grove:"description"     bson:"description"`
	Module          string    `grove:"module"          bson:"module"`
	Actions         []string  `grove:"actions"         bson:"actions"`
	ResourceType    string    `grove:"resource_type"   bson:"resource_type,omitempty"`
	ResourceID      string    `grove:"resource_id"     bson:"resource_id,omitempty"`
	Condition       string    `grove:"condition"       bson:"condition,omitempty"`
	IsSystem        bool      `grove:"is_system"       bson:"is_system"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"      bson:"updated_at"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	m := &permissionModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Module:      string(p.Module),
		Actions:     actionStrings(p.Actions),
		Condition:   p.Condition,
		IsSystem:    p.IsSystem,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Resource != nil {
		m.ResourceType = p.Resource.Type
		m.ResourceID = p.Resource.ID
	}
	return m
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	p := &permission.Permission{
		ID:          pid,
		Name:        m.Name,
		Description: m.Description,
		Module:      access.Module(m.Module),
		Actions:     actionsFromStrings(m.Actions),
		Condition:   m.Condition,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ResourceType != "" {
		p.Resource = &access.Qualifier{Type: m.ResourceType, ID: m.ResourceID}
	}
	return p
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

// roleModel embeds the permission set; a role document is always written
// whole.
type roleModel struct {
	grove.BaseModel `grove:"table:portcullis_roles"`
	ID              string    `grove:"id,pk"           bson:"_id"`
	Name            string    `grove:"name"            bson:"name"`
	Description     string    `grove:"description"     bson:"description"`
	Permissions     []string  `grove:"permissions"     bson:"permissions"`
	Level           int       `grove:"level"           bson:"level"`
	IsSystem        bool      `grove:"is_system"       bson:"is_system"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"      bson:"updated_at"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Permissions: id.Strings(r.Permissions),
		Level:       r.Level,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		Permissions: id.ParsePermissionIDs(m.Permissions),
		Level:       m.Level,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// User permission (override) model
// ──────────────────────────────────────────────────

type resourcePermissionModel struct {
	ResourceType string   `bson:"resource_type"`
	ResourceID   string   `bson:"resource_id,omitempty"`
	PermissionID string   `bson:"permission_id"`
	Actions      []string `bson:"actions,omitempty"`
}

type userPermissionModel struct {
	grove.BaseModel       `grove:"table:portcullis_user_permissions"`
	UserID                string                    `grove:"user_id,pk"              bson:"_id"`
	RoleID                string                    `grove:"role_id"                 bson:"role_id,omitempty"`
	CustomPermissions     []string                  `grove:"custom_permissions"      bson:"custom_permissions"`
	RestrictedPermissions []string                  `grove:"restricted_permissions"  bson:"restricted_permissions"`
	ResourcePermissions   []resourcePermissionModel `grove:"resource_permissions"    bson:"resource_permissions"`
	CreatedAt             time.Time                 `grove:"created_at"              bson:"created_at"`
	UpdatedAt             time.Time                 `grove:"updated_at"              bson:"updated_at"`
}

func userPermissionToModel(u *override.UserPermission) *userPermissionModel {
	m := &userPermissionModel{
		UserID:                u.UserID,
		RoleID:                u.RoleID.String(),
		CustomPermissions:     id.Strings(u.CustomPermissions),
		RestrictedPermissions: id.Strings(u.RestrictedPermissions),
		ResourcePermissions:   make([]resourcePermissionModel, len(u.ResourcePermissions)),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
	for i, rp := range u.ResourcePermissions {
		m.ResourcePermissions[i] = resourcePermissionModel{
			ResourceType: rp.ResourceType,
			ResourceID:   rp.ResourceID,
			PermissionID: rp.PermissionID.String(),
			Actions:      actionStrings(rp.Actions),
		}
	}
	return m
}

func userPermissionFromModel(m *userPermissionModel) *override.UserPermission {
	u := &override.UserPermission{
		UserID:                m.UserID,
		CustomPermissions:     id.ParsePermissionIDs(m.CustomPermissions),
		RestrictedPermissions: id.ParsePermissionIDs(m.RestrictedPermissions),
		ResourcePermissions:   make([]override.ResourcePermission, 0, len(m.ResourcePermissions)),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.RoleID != "" {
		if rid, err := id.ParseRoleID(m.RoleID); err == nil {
			u.RoleID = rid
		}
	}
	for _, rp := range m.ResourcePermissions {
		pid, err := id.ParsePermissionID(rp.PermissionID)
		if err != nil {
			continue
		}
		u.ResourcePermissions = append(u.ResourcePermissions, override.ResourcePermission{
			ResourceType: rp.ResourceType,
			ResourceID:   rp.ResourceID,
			PermissionID: pid,
			Actions:      actionsFromStrings(rp.Actions),
		})
	}
	return u
}

// ──────────────────────────────────────────────────
// Actor model
// ──────────────────────────────────────────────────

type actorModel struct {
	grove.BaseModel `grove:"table:portcullis_actors"`
	ID              string    `grove:"id,pk"           bson:"_id"`
	DisplayName     string    `grove:"display_name"    bson:"display_name,omitempty"`
	Email           string    `grove:"email"           bson:"email,omitempty"`
	RoleName        string    `grove:"role_name"       bson:"role_name"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"      bson:"updated_at"`
}

func actorToModel(a *actor.Actor) *actorModel {
	return &actorModel{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		RoleName:    a.RoleName,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func actorFromModel(m *actorModel) *actor.Actor {
	return &actor.Actor{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		RoleName:    m.RoleName,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Decision log model
// ──────────────────────────────────────────────────

type decisionLogModel struct {
	grove.BaseModel `grove:"table:portcullis_decision_logs"`
	ID              string    `grove:"id,pk"           bson:"_id"`
	ActorID         string    `grove:"actor_id"        bson:"actor_id"`
	Module          string    `grove:"module"          bson:"module"`
	Action          string    `grove:"action"          bson:"action"`
	ResourceType    string    `grove:"resource_type"   bson:"resource_type,omitempty"`
	ResourceID      string    `grove:"resource_id"     bson:"resource_id,omitempty"`
	Granted         bool      `grove:"granted"         bson:"granted"`
	Reason          string    `grove:"reason"          bson:"reason"`
	Detail          string    `grove:"detail"          bson:"detail,omitempty"`
	EvalTimeNs      int64     `grove:"eval_time_ns"    bson:"eval_time_ns"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
}

func decisionLogToModel(e *decisionlog.Entry) *decisionLogModel {
	return &decisionLogModel{
		ID:           e.ID.String(),
		ActorID:      e.ActorID,
		Module:       e.Module,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Granted:      e.Granted,
		Reason:       e.Reason,
		Detail:       e.Detail,
		EvalTimeNs:   e.EvalTimeNs,
		CreatedAt:    e.CreatedAt,
	}
}

func decisionLogFromModel(m *decisionLogModel) *decisionlog.Entry {
	lid, _ := id.ParseDecisionLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &decisionlog.Entry{
		ID:           lid,
		ActorID:      m.ActorID,
		Module:       m.Module,
		Action:       m.Action,
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		Granted:      m.Granted,
		Reason:       m.Reason,
		Detail:       m.Detail,
		EvalTimeNs:   m.EvalTimeNs,
		CreatedAt:    m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func actionStrings(actions []access.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

func actionsFromStrings(ss []string) []access.Action {
	out := make([]access.Action, len(ss))
	for i, s := range ss {
		out[i] = access.Action(s)
	}
	return out
}
