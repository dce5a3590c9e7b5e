package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/admin"
	"github.com/xraph/portcullis/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Creates a new role. Every listed permission must exist."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithDescription("Returns details of a specific role."),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId", a.updateRole,
		forge.WithSummary("Update role"),
		forge.WithDescription("Updates an existing role. System roles cannot be renamed."),
		forge.WithOperationID("updateRole"),
		forge.WithRequestSchema(UpdateRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deleteRole,
		forge.WithSummary("Delete role"),
		forge.WithDescription("Deletes a role. Actors and overrides that reference it are left in place."),
		forge.WithOperationID("deleteRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithDescription("Lists roles, highest level first."),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", ListResponse[*role.Role]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/permissions", a.attachPermissionToRole,
		forge.WithSummary("Attach permission to role"),
		forge.WithDescription("Attaches a permission to a role."),
		forge.WithOperationID("attachPermission"),
		forge.WithRequestSchema(AttachPermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/roles/:roleId/permissions/:permissionId", a.detachPermissionFromRole,
		forge.WithSummary("Detach permission from role"),
		forge.WithDescription("Detaches a permission from a role."),
		forge.WithOperationID("detachPermission"),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	perms, err := parsePermissionIDs(req.Permissions)
	if err != nil {
		return nil, err
	}

	r, err := a.admin.CreateRole(ctx.Context(), &admin.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
		Permissions: perms,
		IsSystem:    req.IsSystem,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*role.Role, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	r, err := a.admin.GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) updateRole(ctx forge.Context, req *UpdateRoleRequest) (*role.Role, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	perms, err := parsePermissionIDs(req.Permissions)
	if err != nil {
		return nil, err
	}

	r, err := a.admin.UpdateRole(ctx.Context(), roleID, &admin.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
		Permissions: perms,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deleteRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	if err := a.admin.DeleteRole(ctx.Context(), roleID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) (*ListResponse[*role.Role], error) {
	filter := &role.ListFilter{
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}
	if req.System != "" {
		sys, err := strconv.ParseBool(req.System)
		if err != nil {
			return nil, forge.BadRequest("invalid system filter")
		}
		filter.IsSystem = &sys
	}

	items, total, err := a.admin.ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*role.Role]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) attachPermissionToRole(ctx forge.Context, req *AttachPermissionRequest) (*role.Role, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	permID, err := parsePermissionID(req.PermissionID)
	if err != nil {
		return nil, err
	}

	r, err := a.admin.AttachPermission(ctx.Context(), roleID, permID)
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) detachPermissionFromRole(ctx forge.Context, _ *struct{}) (*role.Role, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	r, err := a.admin.DetachPermission(ctx.Context(), roleID, permID)
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}
