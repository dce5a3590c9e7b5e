package portcullis

import (
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
)

// matchPermission reports whether p covers req: same module, the action is
// one of p's actions, and p's resource qualifier (if any) covers the
// request's resource. A permission without a qualifier covers the whole
// module, resource-scoped requests included.
func matchPermission(p *permission.Permission, req *Request) bool {
	if p.Module != req.Module || !p.Allows(req.Action) {
		return false
	}
	if p.Resource == nil {
		return true
	}
	if req.Resource == nil {
		return false
	}
	return p.Resource.Covers(*req.Resource)
}

// matchResourceGrant reports whether a resource-scoped grant of p covers
// req. The grant's own action list, when set, narrows p's actions.
func matchResourceGrant(rp override.ResourcePermission, p *permission.Permission, req *Request) bool {
	if req.Resource == nil {
		return false
	}
	if !rp.Qualifier().Covers(*req.Resource) {
		return false
	}
	if !p.Allows(req.Action) {
		return false
	}
	return len(rp.Actions) == 0 || access.ContainsAction(rp.Actions, req.Action)
}
