package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/admin"
)

func (a *API) registerCatalogRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("catalog"))

	return g.POST("/catalog/seed", a.seedCatalog,
		forge.WithSummary("Initialize default catalog"),
		forge.WithDescription("Installs the default permissions and roles. Existing names are left untouched."),
		forge.WithOperationID("seedCatalog"),
		forge.WithResponseSchema(http.StatusOK, "Seed result", &admin.SeedResult{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) seedCatalog(ctx forge.Context, _ *struct{}) (*admin.SeedResult, error) {
	res, err := a.admin.InitializeDefaultCatalog(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return res, ctx.JSON(http.StatusOK, res)
}
