package api

// ──────────────────────────────────────────────────
// Decision requests
// ──────────────────────────────────────────────────

// AuthorizeRequest is the request body for a single decision.
type AuthorizeRequest struct {
	ActorID      string `json:"actor_id" description:"Actor identifier"`
	Module       string `json:"module" description:"Module (dashboard, users, hr, leave, ...)"`
	Action       string `json:"action" description:"Action (create, read, update, delete, approve, assign, export, manage)"`
	ResourceType string `json:"resource_type,omitempty" description:"Resource type for instance-scoped checks"`
	ResourceID   string `json:"resource_id,omitempty" description:"Resource identifier"`
}

// RequestInput is one entry of a batch decision.
type RequestInput struct {
	Module       string `json:"module" description:"Module"`
	Action       string `json:"action" description:"Action"`
	ResourceType string `json:"resource_type,omitempty" description:"Resource type"`
	ResourceID   string `json:"resource_id,omitempty" description:"Resource identifier"`
}

// AuthorizeManyRequest evaluates several requests for one actor against one
// snapshot.
type AuthorizeManyRequest struct {
	ActorID  string         `json:"actor_id" description:"Actor identifier"`
	Requests []RequestInput `json:"requests" description:"Requests in order"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// CreatePermissionRequest is the body for creating a permission.
type CreatePermissionRequest struct {
	Name        string   `json:"name" description:"Unique permission name (e.g. hr.read)"`
	Description string   `json:"description,omitempty" description:"Human-readable description"`
	Module      string   `json:"module" description:"Module the permission applies to"`
	Actions     []string `json:"actions" description:"Granted actions"`
	Resource    string   `json:"resource,omitempty" description:"Optional qualifier: type or type:id"`
	Condition   string   `json:"condition,omitempty" description:"Opaque condition marker, stored only"`
	IsSystem    bool     `json:"is_system,omitempty" description:"System permission flag"`
}

// UpdatePermissionRequest is the body for updating a permission.
type UpdatePermissionRequest struct {
	Name        *string  `json:"name,omitempty" description:"Permission name"`
	Description *string  `json:"description,omitempty" description:"Description"`
	Module      *string  `json:"module,omitempty" description:"Module"`
	Actions     []string `json:"actions,omitempty" description:"Granted actions"`
	Resource    *string  `json:"resource,omitempty" description:"Qualifier: type or type:id, empty for the whole module"`
	Condition   *string  `json:"condition,omitempty" description:"Condition marker"`
}

// GetPermissionRequest is the path parameter for a permission.
type GetPermissionRequest struct {
	PermissionID string `path:"permissionId" description:"Permission ID"`
}

// ListPermissionsRequest holds query parameters for listing permissions.
type ListPermissionsRequest struct {
	Module string `query:"module" description:"Filter by module"`
	Action string `query:"action" description:"Filter by action"`
	System string `query:"system" description:"Filter by system flag (true/false)"`
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name        string   `json:"name" description:"Unique role name"`
	Description string   `json:"description,omitempty" description:"Human-readable description"`
	Level       int      `json:"level" description:"Display rank, higher is more privileged"`
	Permissions []string `json:"permissions,omitempty" description:"Permission IDs"`
	IsSystem    bool     `json:"is_system,omitempty" description:"System role flag"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Name        *string  `json:"name,omitempty" description:"Role name"`
	Description *string  `json:"description,omitempty" description:"Description"`
	Level       *int     `json:"level,omitempty" description:"Display rank"`
	Permissions []string `json:"permissions,omitempty" description:"Replacement permission set"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	System string `query:"system" description:"Filter by system flag (true/false)"`
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// AttachPermissionRequest is the body for attaching a permission to a role.
type AttachPermissionRequest struct {
	PermissionID string `json:"permission_id" description:"Permission ID to attach"`
}

// ──────────────────────────────────────────────────
// Override requests
// ──────────────────────────────────────────────────

// ResourcePermissionInput is a resource-scoped grant.
type ResourcePermissionInput struct {
	ResourceType string   `json:"resource_type" description:"Resource type"`
	ResourceID   string   `json:"resource_id,omitempty" description:"Resource ID, empty or * for every instance"`
	PermissionID string   `json:"permission_id" description:"Granted permission ID"`
	Actions      []string `json:"actions,omitempty" description:"Optional narrowing of the permission's actions"`
}

// SetOverrideRequest replaces an actor's override record.
type SetOverrideRequest struct {
	RoleID                string                    `json:"role_id,omitempty" description:"Role ID taking precedence over the profile role"`
	CustomPermissions     []string                  `json:"custom_permissions,omitempty" description:"Explicitly granted permission IDs"`
	RestrictedPermissions []string                  `json:"restricted_permissions,omitempty" description:"Explicitly denied permission IDs"`
	ResourcePermissions   []ResourcePermissionInput `json:"resource_permissions,omitempty" description:"Resource-scoped grants"`
}

// GetOverrideRequest is the path parameter for an override record.
type GetOverrideRequest struct {
	UserID string `path:"userId" description:"Actor ID"`
}

// OverridePermissionRequest names one permission to grant or restrict.
type OverridePermissionRequest struct {
	PermissionID string `json:"permission_id" description:"Permission ID"`
}

// AssignRoleRequest points an override record at a role.
type AssignRoleRequest struct {
	RoleID string `json:"role_id" description:"Role ID"`
}

// ListOverridesRequest holds query parameters for listing override records.
type ListOverridesRequest struct {
	RoleID       string `query:"role_id" description:"Filter by role ID"`
	PermissionID string `query:"permission_id" description:"Filter by referenced permission ID"`
	Limit        int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset       int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Actor requests
// ──────────────────────────────────────────────────

// CreateActorRequest is the body for registering an actor profile.
type CreateActorRequest struct {
	ID          string `json:"id" description:"Actor identifier"`
	DisplayName string `json:"display_name,omitempty" description:"Display name"`
	Email       string `json:"email,omitempty" description:"Email address"`
	RoleName    string `json:"role_name" description:"Declared role name"`
}

// UpdateActorRequest is the body for updating an actor profile.
type UpdateActorRequest struct {
	DisplayName *string `json:"display_name,omitempty" description:"Display name"`
	Email       *string `json:"email,omitempty" description:"Email address"`
	RoleName    *string `json:"role_name,omitempty" description:"Declared role name"`
}

// GetActorRequest is the path parameter for an actor.
type GetActorRequest struct {
	ActorID string `path:"actorId" description:"Actor ID"`
}

// ListActorsRequest holds query parameters for listing actors.
type ListActorsRequest struct {
	RoleName string `query:"role_name" description:"Filter by role name"`
	Search   string `query:"search" description:"Search by id, name or email"`
	Limit    int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Decision log requests
// ──────────────────────────────────────────────────

// ListDecisionLogsRequest holds query parameters for querying decision logs.
type ListDecisionLogsRequest struct {
	ActorID string `query:"actor_id" description:"Filter by actor ID"`
	Module  string `query:"module" description:"Filter by module"`
	Reason  string `query:"reason" description:"Filter by reason code"`
	Granted string `query:"granted" description:"Filter by outcome (true/false)"`
	After   string `query:"after" description:"After timestamp (RFC3339)"`
	Before  string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit   int    `query:"limit" description:"Maximum results"`
	Offset  int    `query:"offset" description:"Results to skip"`
}

// GetDecisionLogRequest is the path parameter for a decision log entry.
type GetDecisionLogRequest struct {
	LogID string `path:"logId" description:"Decision log ID"`
}

// PurgeDecisionLogsRequest removes entries older than Before.
type PurgeDecisionLogsRequest struct {
	Before string `json:"before" description:"Cut-off timestamp (RFC3339)"`
}
