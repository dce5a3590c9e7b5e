// Package middleware provides HTTP authorization middleware for portcullis.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
)

// Require enforces authorization for a module-level action. The actor is
// the Forge user ID carried by the request context; requests without one
// are denied.
func Require(eng *portcullis.Engine, module access.Module, action access.Action) forge.Middleware {
	return guard(eng, func(forge.Context) []*portcullis.Request {
		return []*portcullis.Request{{Module: module, Action: action}}
	})
}

// RequireResource enforces authorization on the resource instance named by
// the ":id" path parameter.
func RequireResource(eng *portcullis.Engine, module access.Module, action access.Action, resourceType string) forge.Middleware {
	return guard(eng, func(ctx forge.Context) []*portcullis.Request {
		return []*portcullis.Request{{
			Module:   module,
			Action:   action,
			Resource: &access.Qualifier{Type: resourceType, ID: ctx.Param("id")},
		}}
	})
}

// RequireAny allows the request if ANY of the requests is granted.
func RequireAny(eng *portcullis.Engine, reqs ...*portcullis.Request) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			actorID := forge.UserIDFromContext(ctx.Context())
			if actorID == "" {
				return denyResponse(ctx)
			}
			results, err := eng.AuthorizeMany(ctx.Context(), actorID, reqs)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, r := range results {
				if r.Granted {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL requests are granted.
func RequireAll(eng *portcullis.Engine, reqs ...*portcullis.Request) forge.Middleware {
	return guard(eng, func(forge.Context) []*portcullis.Request { return reqs })
}

// guard evaluates the requests built for each call in one snapshot and
// passes only when every one is granted.
func guard(eng *portcullis.Engine, build func(forge.Context) []*portcullis.Request) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			actorID := forge.UserIDFromContext(ctx.Context())
			if actorID == "" {
				return denyResponse(ctx)
			}
			results, err := eng.AuthorizeMany(ctx.Context(), actorID, build(ctx))
			if err != nil {
				return denyResponse(ctx)
			}
			for _, r := range results {
				if !r.Granted {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
