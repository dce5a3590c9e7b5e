package postgres

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
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	Module          string    `grove:"module,notnull"`
	Actions         []string  `grove:"actions,type:jsonb"`
	ResourceType    string    `grove:"resource_type"`
	ResourceID      string    `grove:"resource_id"`
	Condition       string    `grove:"condition"`
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
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

type roleModel struct {
	grove.BaseModel `grove:"table:portcullis_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	Level           int       `grove:"level,notnull"`
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Level:       r.Level,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel, perms []rolePermissionModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	r := &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		Level:       m.Level,
		IsSystem:    m.IsSystem,
		Permissions: make([]id.PermissionID, 0, len(perms)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, rp := range perms {
		if pid, err := id.ParsePermissionID(rp.PermissionID); err == nil {
			r.Permissions = append(r.Permissions, pid)
		}
	}
	return r
}

// ──────────────────────────────────────────────────
// Role-Permission junction model
// ──────────────────────────────────────────────────

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:portcullis_role_permissions"`
	RoleID          string `grove:"role_id,pk"`
	PermissionID    string `grove:"permission_id,pk"`
}

func rolePermissionModels(r *role.Role) []rolePermissionModel {
	models := make([]rolePermissionModel, len(r.Permissions))
	for i, pid := range r.Permissions {
		models[i] = rolePermissionModel{RoleID: r.ID.String(), PermissionID: pid.String()}
	}
	return models
}

// ──────────────────────────────────────────────────
// User permission (override) model
// ──────────────────────────────────────────────────

type resourcePermissionModel struct {
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id,omitempty"`
	PermissionID string   `json:"permission_id"`
	Actions      []string `json:"actions,omitempty"`
}

type userPermissionModel struct {
	grove.BaseModel       `grove:"table:portcullis_user_permissions"`
	UserID                string                    `grove:"user_id,pk"`
	RoleID                *string                   `grove:"role_id"`
	CustomPermissions     []string                  `grove:"custom_permissions,type:jsonb"`
	RestrictedPermissions []string                  `grove:"restricted_permissions,type:jsonb"`
	ResourcePermissions   []resourcePermissionModel `grove:"resource_permissions,type:jsonb"`
	CreatedAt             time.Time                 `grove:"created_at,notnull"`
	UpdatedAt             time.Time                 `grove:"updated_at,notnull"`
}

func userPermissionToModel(u *override.UserPermission) *userPermissionModel {
	m := &userPermissionModel{
		UserID:                u.UserID,
		CustomPermissions:     id.Strings(u.CustomPermissions),
		RestrictedPermissions: id.Strings(u.RestrictedPermissions),
		ResourcePermissions:   make([]resourcePermissionModel, len(u.ResourcePermissions)),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
	if !u.RoleID.IsNil() {
		s := u.RoleID.String()
		m.RoleID = &s
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
	if m.RoleID != nil {
		if rid, err := id.ParseRoleID(*m.RoleID); err == nil {
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
	ID              string    `grove:"id,pk"`
	DisplayName     string    `grove:"display_name"`
	Email           string    `grove:"email"`
	RoleName        string    `grove:"role_name,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
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
	ID              string    `grove:"id,pk"`
	ActorID         string    `grove:"actor_id,notnull"`
	Module          string    `grove:"module,notnull"`
	Action          string    `grove:"action,notnull"`
	ResourceType    string    `grove:"resource_type"`
	ResourceID      string    `grove:"resource_id"`
	Granted         bool      `grove:"granted,notnull"`
	Reason          string    `grove:"reason,notnull"`
	Detail          string    `grove:"detail"`
	EvalTimeNs      int64     `grove:"eval_time_ns,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
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
