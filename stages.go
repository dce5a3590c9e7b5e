package portcullis

import "github.com/xraph/portcullis/id"

// stage is one state of the precedence machine. Stages run in declaration
// order and any of them may end the evaluation.
type stage uint8

const (
	stageSuperuser stage = iota
	stageOverride
	stageRestriction
	stageGrant
	stageRole
	stageDone
)

var stageNames = [...]string{
	stageSuperuser:   "superuser",
	stageOverride:    "override",
	stageRestriction: "restriction",
	stageGrant:       "grant",
	stageRole:        "role",
	stageDone:        "done",
}

func (s stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// evaluation carries one request through the stages.
type evaluation struct {
	view      *view
	req       *Request
	superuser string
	trace     []stage
	result    *Result
}

// decide runs req against v and returns the decision.
func decide(v *view, req *Request, superuser string) *Result {
	return run(v, req, superuser).result
}

// run drives the machine to stageDone, recording the stages visited.
func run(v *view, req *Request, superuser string) *evaluation {
	ev := &evaluation{view: v, req: req, superuser: superuser}
	for st := stageSuperuser; st != stageDone; {
		ev.trace = append(ev.trace, st)
		st = ev.step(st)
	}
	return ev
}

func (ev *evaluation) step(st stage) stage {
	switch st {
	case stageSuperuser:
		return ev.superuserBypass()
	case stageOverride:
		return ev.overrideRecord()
	case stageRestriction:
		return ev.restriction()
	case stageGrant:
		return ev.grant()
	case stageRole:
		return ev.roleFallback()
	default:
		return stageDone
	}
}

func (ev *evaluation) finish(granted bool, reason Reason, pid id.PermissionID, detail string) stage {
	ev.result = &Result{
		Granted:      granted,
		Reason:       reason,
		PermissionID: pid,
		Detail:       detail,
	}
	return stageDone
}

func (ev *evaluation) superuserBypass() stage {
	if ev.view.roleName == ev.superuser {
		return ev.finish(true, ReasonSuperuserBypass, id.Nil, "role "+ev.superuser)
	}
	return stageOverride
}

// overrideRecord routes actors without an override record straight to
// the role stage.
func (ev *evaluation) overrideRecord() stage {
	if ev.view.override == nil {
		return stageRole
	}
	return stageRestriction
}

func (ev *evaluation) restriction() stage {
	for _, pid := range ev.view.override.RestrictedPermissions {
		p, ok := ev.view.permission(pid)
		if !ok {
			continue
		}
		if matchPermission(p, ev.req) {
			return ev.finish(false, ReasonExplicitRestriction, pid, "restricted by "+p.Name)
		}
	}
	return stageGrant
}

// grant checks custom grants first, then resource-scoped grants. An id
// that is also restricted never grants.
func (ev *evaluation) grant() stage {
	u := ev.view.override
	for _, pid := range u.CustomPermissions {
		if u.IsRestricted(pid) {
			continue
		}
		p, ok := ev.view.permission(pid)
		if !ok {
			continue
		}
		if matchPermission(p, ev.req) {
			return ev.finish(true, ReasonCustomGrant, pid, "custom grant "+p.Name)
		}
	}
	if ev.req.Resource == nil {
		return stageRole
	}
	for _, rp := range u.ResourcePermissions {
		if u.IsRestricted(rp.PermissionID) {
			continue
		}
		p, ok := ev.view.permission(rp.PermissionID)
		if !ok {
			continue
		}
		if matchResourceGrant(rp, p, ev.req) {
			return ev.finish(true, ReasonResourceGrant, rp.PermissionID, p.Name+" on "+rp.Qualifier().String())
		}
	}
	return stageRole
}

func (ev *evaluation) roleFallback() stage {
	rl := ev.view.role
	if rl == nil {
		return ev.finish(false, ReasonRoleDenied, id.Nil, "no role resolved")
	}
	for _, pid := range rl.Permissions {
		p, ok := ev.view.permission(pid)
		if !ok {
			continue
		}
		if matchPermission(p, ev.req) {
			return ev.finish(true, ReasonRoleGrant, pid, "role "+rl.Name+" grants "+p.Name)
		}
	}
	return ev.finish(false, ReasonRoleDenied, id.Nil, "role "+rl.Name+" does not grant "+ev.req.String())
}
