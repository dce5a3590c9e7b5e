package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/admin"
)

func (a *API) registerActorRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("actors"))

	if err := g.POST("/actors", a.createActor,
		forge.WithSummary("Register actor"),
		forge.WithDescription("Registers an actor profile with its declared role."),
		forge.WithOperationID("createActor"),
		forge.WithRequestSchema(CreateActorRequest{}),
		forge.WithCreatedResponse(&actor.Actor{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/actors/:actorId", a.getActor,
		forge.WithSummary("Get actor"),
		forge.WithOperationID("getActor"),
		forge.WithResponseSchema(http.StatusOK, "Actor profile", &actor.Actor{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/actors/:actorId", a.updateActor,
		forge.WithSummary("Update actor"),
		forge.WithDescription("Updates an actor profile, including its declared role."),
		forge.WithOperationID("updateActor"),
		forge.WithRequestSchema(UpdateActorRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Actor profile", &actor.Actor{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/actors/:actorId", a.deleteActor,
		forge.WithSummary("Delete actor"),
		forge.WithOperationID("deleteActor"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/actors", a.listActors,
		forge.WithSummary("List actors"),
		forge.WithOperationID("listActors"),
		forge.WithRequestSchema(ListActorsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Actor list", []*actor.Actor{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createActor(ctx forge.Context, req *CreateActorRequest) (*actor.Actor, error) {
	act, err := a.admin.CreateActor(ctx.Context(), &admin.CreateActorInput{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		RoleName:    req.RoleName,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return act, ctx.JSON(http.StatusCreated, act)
}

func (a *API) getActor(ctx forge.Context, _ *GetActorRequest) (*actor.Actor, error) {
	act, err := a.admin.GetActor(ctx.Context(), ctx.Param("actorId"))
	if err != nil {
		return nil, mapError(err)
	}
	return act, ctx.JSON(http.StatusOK, act)
}

func (a *API) updateActor(ctx forge.Context, req *UpdateActorRequest) (*actor.Actor, error) {
	act, err := a.admin.UpdateActor(ctx.Context(), ctx.Param("actorId"), &admin.UpdateActorInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		RoleName:    req.RoleName,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return act, ctx.JSON(http.StatusOK, act)
}

func (a *API) deleteActor(ctx forge.Context, _ *GetActorRequest) (*struct{}, error) {
	if err := a.admin.DeleteActor(ctx.Context(), ctx.Param("actorId")); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listActors(ctx forge.Context, req *ListActorsRequest) ([]*actor.Actor, error) {
	list, err := a.admin.ListActors(ctx.Context(), &actor.ListFilter{
		RoleName: req.RoleName,
		Search:   req.Search,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return list, ctx.JSON(http.StatusOK, list)
}
