package api

import (
	"context"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/admin"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
)

func (a *API) registerOverrideRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("overrides"))

	if err := g.GET("/overrides", a.listOverrides,
		forge.WithSummary("List overrides"),
		forge.WithOperationID("listOverrides"),
		forge.WithRequestSchema(ListOverridesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override list", []*override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/overrides/:userId", a.getOverride,
		forge.WithSummary("Get override"),
		forge.WithDescription("Returns the override record of an actor."),
		forge.WithOperationID("getOverride"),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/overrides/:userId", a.setOverride,
		forge.WithSummary("Replace override"),
		forge.WithDescription("Replaces the whole override record of an actor."),
		forge.WithOperationID("setOverride"),
		forge.WithRequestSchema(SetOverrideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/overrides/:userId", a.deleteOverride,
		forge.WithSummary("Delete override"),
		forge.WithDescription("Removes the override record; the actor falls back to its profile role."),
		forge.WithOperationID("deleteOverride"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/overrides/:userId/grants", a.grantPermission,
		forge.WithSummary("Grant permission"),
		forge.WithDescription("Adds one custom grant, creating the record if needed."),
		forge.WithOperationID("grantPermission"),
		forge.WithRequestSchema(OverridePermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/overrides/:userId/grants/:permissionId", a.revokePermission,
		forge.WithSummary("Revoke permission"),
		forge.WithOperationID("revokePermission"),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/overrides/:userId/restrictions", a.restrictPermission,
		forge.WithSummary("Restrict permission"),
		forge.WithDescription("Adds one explicit denial, creating the record if needed."),
		forge.WithOperationID("restrictPermission"),
		forge.WithRequestSchema(OverridePermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/overrides/:userId/restrictions/:permissionId", a.unrestrictPermission,
		forge.WithSummary("Lift restriction"),
		forge.WithOperationID("unrestrictPermission"),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/overrides/:userId/resources", a.grantResource,
		forge.WithSummary("Grant on resource"),
		forge.WithDescription("Adds or replaces a resource-scoped grant."),
		forge.WithOperationID("grantResource"),
		forge.WithRequestSchema(ResourcePermissionInput{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/overrides/:userId/resources/revoke", a.revokeResource,
		forge.WithSummary("Revoke resource grant"),
		forge.WithOperationID("revokeResource"),
		forge.WithRequestSchema(ResourcePermissionInput{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/overrides/:userId/role", a.assignRole,
		forge.WithSummary("Assign override role"),
		forge.WithDescription("Points the override record at a role that takes precedence over the profile role."),
		forge.WithOperationID("assignOverrideRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/overrides/:userId/role", a.clearRole,
		forge.WithSummary("Clear override role"),
		forge.WithOperationID("clearOverrideRole"),
		forge.WithResponseSchema(http.StatusOK, "Override record", &override.UserPermission{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listOverrides(ctx forge.Context, req *ListOverridesRequest) ([]*override.UserPermission, error) {
	filter := &override.ListFilter{
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}
	if req.RoleID != "" {
		rid, err := parseRoleID(req.RoleID)
		if err != nil {
			return nil, err
		}
		filter.RoleID = &rid
	}
	if req.PermissionID != "" {
		pid, err := parsePermissionID(req.PermissionID)
		if err != nil {
			return nil, err
		}
		filter.PermissionID = &pid
	}

	list, err := a.admin.ListOverrides(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	return list, ctx.JSON(http.StatusOK, list)
}

func (a *API) getOverride(ctx forge.Context, _ *GetOverrideRequest) (*override.UserPermission, error) {
	u, err := a.admin.GetOverride(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) setOverride(ctx forge.Context, req *SetOverrideRequest) (*override.UserPermission, error) {
	in := &admin.SetOverrideInput{UserID: ctx.Param("userId")}
	if req.RoleID != "" {
		rid, err := parseRoleID(req.RoleID)
		if err != nil {
			return nil, err
		}
		in.RoleID = rid
	}
	var err error
	if in.CustomPermissions, err = parsePermissionIDs(req.CustomPermissions); err != nil {
		return nil, err
	}
	if in.RestrictedPermissions, err = parsePermissionIDs(req.RestrictedPermissions); err != nil {
		return nil, err
	}
	for _, rp := range req.ResourcePermissions {
		grant, err := toResourcePermission(rp)
		if err != nil {
			return nil, err
		}
		in.ResourcePermissions = append(in.ResourcePermissions, grant)
	}

	u, err := a.admin.SetOverride(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) deleteOverride(ctx forge.Context, _ *GetOverrideRequest) (*struct{}, error) {
	if err := a.admin.DeleteOverride(ctx.Context(), ctx.Param("userId")); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

type permissionEdit func(context.Context, string, id.PermissionID) (*override.UserPermission, error)

func (a *API) editByBody(ctx forge.Context, permID string, edit permissionEdit) (*override.UserPermission, error) {
	pid, err := parsePermissionID(permID)
	if err != nil {
		return nil, err
	}
	u, err := edit(ctx.Context(), ctx.Param("userId"), pid)
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) grantPermission(ctx forge.Context, req *OverridePermissionRequest) (*override.UserPermission, error) {
	return a.editByBody(ctx, req.PermissionID, a.admin.GrantPermission)
}

func (a *API) revokePermission(ctx forge.Context, _ *struct{}) (*override.UserPermission, error) {
	return a.editByBody(ctx, ctx.Param("permissionId"), a.admin.RevokePermission)
}

func (a *API) restrictPermission(ctx forge.Context, req *OverridePermissionRequest) (*override.UserPermission, error) {
	return a.editByBody(ctx, req.PermissionID, a.admin.RestrictPermission)
}

func (a *API) unrestrictPermission(ctx forge.Context, _ *struct{}) (*override.UserPermission, error) {
	return a.editByBody(ctx, ctx.Param("permissionId"), a.admin.UnrestrictPermission)
}

func (a *API) grantResource(ctx forge.Context, req *ResourcePermissionInput) (*override.UserPermission, error) {
	rp, err := toResourcePermission(*req)
	if err != nil {
		return nil, err
	}
	u, err := a.admin.GrantResource(ctx.Context(), ctx.Param("userId"), rp)
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) revokeResource(ctx forge.Context, req *ResourcePermissionInput) (*override.UserPermission, error) {
	rp, err := toResourcePermission(*req)
	if err != nil {
		return nil, err
	}
	u, err := a.admin.RevokeResource(ctx.Context(), ctx.Param("userId"), rp)
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*override.UserPermission, error) {
	rid, err := parseRoleID(req.RoleID)
	if err != nil {
		return nil, err
	}
	u, err := a.admin.AssignRole(ctx.Context(), ctx.Param("userId"), rid)
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) clearRole(ctx forge.Context, _ *struct{}) (*override.UserPermission, error) {
	u, err := a.admin.ClearRole(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}
	return u, ctx.JSON(http.StatusOK, u)
}

func toResourcePermission(in ResourcePermissionInput) (override.ResourcePermission, error) {
	pid, err := parsePermissionID(in.PermissionID)
	if err != nil {
		return override.ResourcePermission{}, err
	}
	return override.ResourcePermission{
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		PermissionID: pid,
		Actions:      toActions(in.Actions),
	}, nil
}
