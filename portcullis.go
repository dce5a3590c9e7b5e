// Package portcullis is the authorization decision engine of the enterprise
// portal.
//
// Given an actor id and a request for an action on a portal module,
// optionally narrowed to one resource, the engine reconciles the permission
// catalog, the actor's role and the actor's override record into a single
// granted/denied answer that always carries a reason code.
//
//	eng, err := portcullis.NewEngine(
//	    portcullis.WithStore(memStore),
//	)
//	res, err := eng.Authorize(ctx, "u_123", &portcullis.Request{
//	    Module:   access.ModuleHR,
//	    Action:   access.ActionApprove,
//	    Resource: &access.Qualifier{Type: "goal", ID: "g1"},
//	})
//
// Authorize fails closed: store and lookup failures produce a denied result
// with reason store-error or actor-not-found. The only error it returns is
// ErrCancelled.
package portcullis

import (
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
)

// Request is the input to a decision. It is never persisted.
type Request struct {
	Module   access.Module     `json:"module"`
	Action   access.Action     `json:"action"`
	Resource *access.Qualifier `json:"resource,omitempty"`
}

// String renders the request as "module:action" or "module:action@type:id".
func (r *Request) String() string {
	s := string(r.Module) + ":" + string(r.Action)
	if r.Resource != nil {
		s += "@" + r.Resource.Type + ":" + r.Resource.ID
	}
	return s
}

// Result is the outcome of a decision.
type Result struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`

	// Detail is a short audit note; it must never be shown to end users.
	Detail string `json:"detail,omitempty"`

	// PermissionID is the permission that decided the outcome, if any.
	PermissionID id.PermissionID `json:"permission_id"`

	EvalTimeNs int64 `json:"eval_time_ns"`

	// Cached reports that the result was served from the decision cache.
	Cached bool `json:"cached,omitempty"`
}

func (r *Result) clone() *Result {
	cp := *r
	return &cp
}

// Reason explains why a decision came out the way it did.
type Reason string

const (
	// ReasonSuperuserBypass means the actor holds the reserved superuser role.
	ReasonSuperuserBypass Reason = "superuser-bypass"

	// ReasonCustomGrant means a permission in the actor's custom grants matched.
	ReasonCustomGrant Reason = "custom-grant"

	// ReasonResourceGrant means a resource-scoped grant of the actor matched.
	ReasonResourceGrant Reason = "resource-grant"

	// ReasonExplicitRestriction means a restricted permission matched.
	ReasonExplicitRestriction Reason = "explicit-restriction"

	// ReasonRoleGrant means a permission of the actor's role matched.
	ReasonRoleGrant Reason = "role-grant"

	// ReasonRoleDenied means nothing granted the request.
	ReasonRoleDenied Reason = "role-denied"

	// ReasonActorNotFound means the actor profile does not exist.
	ReasonActorNotFound Reason = "actor-not-found"

	// ReasonStoreError means a store read failed.
	ReasonStoreError Reason = "store-error"
)

var reasons = []Reason{
	ReasonSuperuserBypass,
	ReasonCustomGrant,
	ReasonResourceGrant,
	ReasonExplicitRestriction,
	ReasonRoleGrant,
	ReasonRoleDenied,
	ReasonActorNotFound,
	ReasonStoreError,
}

// Reasons returns every reason code.
func Reasons() []Reason { return append([]Reason(nil), reasons...) }

func (r Reason) String() string { return string(r) }

// Definitive reports whether a result with this reason reflects the stored
// data rather than a failure to read it.
func (r Reason) Definitive() bool { return r != ReasonStoreError }
