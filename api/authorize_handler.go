package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
)

func (a *API) registerAuthorizeRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/authorize", a.authorize,
		forge.WithSummary("Authorize"),
		forge.WithDescription("Decides whether the actor may perform the action on the module, optionally on one resource."),
		forge.WithOperationID("authzAuthorize"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce"),
		forge.WithDescription("Returns 200 if granted, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Granted", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/authorize-many", a.authorizeMany,
		forge.WithSummary("Authorize many"),
		forge.WithDescription("Evaluates several requests for one actor against one consistent snapshot."),
		forge.WithOperationID("authzAuthorizeMany"),
		forge.WithRequestSchema(AuthorizeManyRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decisions", AuthorizeManyResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) authorize(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.ActorID == "" {
		return nil, forge.BadRequest("actor_id is required")
	}
	r, err := toRequest(RequestInput{Module: req.Module, Action: req.Action, ResourceType: req.ResourceType, ResourceID: req.ResourceID})
	if err != nil {
		return nil, err
	}

	result, err := a.eng.Authorize(ctx.Context(), req.ActorID, r)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toAuthorizeResponse(result)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.ActorID == "" {
		return nil, forge.BadRequest("actor_id is required")
	}
	r, err := toRequest(RequestInput{Module: req.Module, Action: req.Action, ResourceType: req.ResourceType, ResourceID: req.ResourceID})
	if err != nil {
		return nil, err
	}

	result, err := a.eng.Authorize(ctx.Context(), req.ActorID, r)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toAuthorizeResponse(result)
	if !result.Granted {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) authorizeMany(ctx forge.Context, req *AuthorizeManyRequest) (*AuthorizeManyResponse, error) {
	if req.ActorID == "" {
		return nil, forge.BadRequest("actor_id is required")
	}
	if len(req.Requests) == 0 {
		return nil, forge.BadRequest("requests cannot be empty")
	}

	reqs := make([]*portcullis.Request, len(req.Requests))
	for i, in := range req.Requests {
		r, err := toRequest(in)
		if err != nil {
			return nil, err
		}
		reqs[i] = r
	}

	results, err := a.eng.AuthorizeMany(ctx.Context(), req.ActorID, reqs)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AuthorizeManyResponse{Results: make([]AuthorizeResponse, len(results))}
	for i, r := range results {
		resp.Results[i] = *toAuthorizeResponse(r)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

// toRequest builds an engine request. Module and action are not checked
// against the enumerations: unknown values simply match nothing.
func toRequest(in RequestInput) (*portcullis.Request, error) {
	if in.Module == "" || in.Action == "" {
		return nil, forge.BadRequest("module and action are required")
	}
	r := &portcullis.Request{
		Module: access.Module(in.Module),
		Action: access.Action(in.Action),
	}
	switch {
	case in.ResourceType != "":
		r.Resource = &access.Qualifier{Type: in.ResourceType, ID: in.ResourceID}
	case in.ResourceID != "":
		return nil, forge.BadRequest("resource_id requires resource_type")
	}
	return r, nil
}

func toAuthorizeResponse(r *portcullis.Result) *AuthorizeResponse {
	return &AuthorizeResponse{
		Granted:      r.Granted,
		Reason:       string(r.Reason),
		Detail:       r.Detail,
		PermissionID: r.PermissionID.String(),
		EvalTimeNs:   r.EvalTimeNs,
	}
}
