package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/admin"
	"github.com/xraph/portcullis/permission"
)

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("permissions"))

	if err := g.POST("/permissions", a.createPermission,
		forge.WithSummary("Create permission"),
		forge.WithDescription("Adds a permission to the catalog."),
		forge.WithOperationID("createPermission"),
		forge.WithRequestSchema(CreatePermissionRequest{}),
		forge.WithCreatedResponse(&permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/:permissionId", a.getPermission,
		forge.WithSummary("Get permission"),
		forge.WithOperationID("getPermission"),
		forge.WithResponseSchema(http.StatusOK, "Permission details", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/permissions/:permissionId", a.updatePermission,
		forge.WithSummary("Update permission"),
		forge.WithDescription("Updates a permission. System permissions accept description and condition changes only."),
		forge.WithOperationID("updatePermission"),
		forge.WithRequestSchema(UpdatePermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated permission", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/permissions/:permissionId", a.deletePermission,
		forge.WithSummary("Delete permission"),
		forge.WithDescription("Deletes a permission. References held by roles and overrides are left in place."),
		forge.WithOperationID("deletePermission"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/permissions", a.listPermissions,
		forge.WithSummary("List permissions"),
		forge.WithOperationID("listPermissions"),
		forge.WithRequestSchema(ListPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission list", ListResponse[*permission.Permission]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createPermission(ctx forge.Context, req *CreatePermissionRequest) (*permission.Permission, error) {
	p, err := a.admin.CreatePermission(ctx.Context(), &admin.CreatePermissionInput{
		Name:        req.Name,
		Description: req.Description,
		Module:      access.Module(req.Module),
		Actions:     toActions(req.Actions),
		Resource:    req.Resource,
		Condition:   req.Condition,
		IsSystem:    req.IsSystem,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return p, ctx.JSON(http.StatusCreated, p)
}

func (a *API) getPermission(ctx forge.Context, _ *GetPermissionRequest) (*permission.Permission, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	p, err := a.admin.GetPermission(ctx.Context(), permID)
	if err != nil {
		return nil, mapError(err)
	}
	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) updatePermission(ctx forge.Context, req *UpdatePermissionRequest) (*permission.Permission, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	in := &admin.UpdatePermissionInput{
		Name:        req.Name,
		Description: req.Description,
		Actions:     toActions(req.Actions),
		Resource:    req.Resource,
		Condition:   req.Condition,
	}
	if req.Module != nil {
		m := access.Module(*req.Module)
		in.Module = &m
	}

	p, err := a.admin.UpdatePermission(ctx.Context(), permID, in)
	if err != nil {
		return nil, mapError(err)
	}
	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) deletePermission(ctx forge.Context, _ *GetPermissionRequest) (*struct{}, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	if err := a.admin.DeletePermission(ctx.Context(), permID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listPermissions(ctx forge.Context, req *ListPermissionsRequest) (*ListResponse[*permission.Permission], error) {
	filter := &permission.ListFilter{
		Module: access.Module(req.Module),
		Action: access.Action(req.Action),
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

	items, total, err := a.admin.ListPermissions(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*permission.Permission]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toActions(ss []string) []access.Action {
	if ss == nil {
		return nil
	}
	out := make([]access.Action, len(ss))
	for i, s := range ss {
		out[i] = access.Action(s)
	}
	return out
}
