// Package api provides HTTP handlers for the portcullis decision engine and
// its administration surface.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/admin"
)

// API wires all portcullis HTTP handlers together.
type API struct {
	eng    *portcullis.Engine
	admin  *admin.Service
	router forge.Router
}

// New creates an API from an Engine, its administration service and a
// Forge router. A nil svc is derived from the engine.
func New(eng *portcullis.Engine, svc *admin.Service, router forge.Router) *API {
	if svc == nil {
		svc = admin.ForEngine(eng)
	}
	return &API{eng: eng, admin: svc, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("portcullis: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerAuthorizeRoutes,
		a.registerPermissionRoutes,
		a.registerRoleRoutes,
		a.registerOverrideRoutes,
		a.registerActorRoutes,
		a.registerCatalogRoutes,
		a.registerDecisionLogRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
