package portcullis

import (
	"slices"
	"testing"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
)

func testView(roleName string, rl *role.Role, u *override.UserPermission, perms ...*permission.Permission) *view {
	v := &view{actorID: "u1", roleName: roleName, role: rl, override: u, perms: make(map[string]*permission.Permission)}
	for _, p := range perms {
		v.perms[p.ID.String()] = p
	}
	return v
}

func TestStageOrder(t *testing.T) {
	read := &permission.Permission{ID: id.NewPermissionID(), Name: "hr.read", Module: access.ModuleHR, Actions: []access.Action{access.ActionRead}}
	employee := &role.Role{ID: id.NewRoleID(), Name: "employee", Permissions: []id.PermissionID{read.ID}}

	tests := []struct {
		name  string
		view  *view
		want  []stage
		grant bool
	}{
		{
			name:  "superuser",
			view:  testView(DefaultSuperuserRole, nil, nil),
			want:  []stage{stageSuperuser},
			grant: true,
		},
		{
			name:  "no override skips to role",
			view:  testView("employee", employee, nil, read),
			want:  []stage{stageSuperuser, stageOverride, stageRole},
			grant: true,
		},
		{
			name:  "restriction ends evaluation",
			view:  testView("employee", employee, &override.UserPermission{UserID: "u1", RestrictedPermissions: []id.PermissionID{read.ID}}, read),
			want:  []stage{stageSuperuser, stageOverride, stageRestriction},
			grant: false,
		},
		{
			name:  "custom grant ends evaluation",
			view:  testView("employee", nil, &override.UserPermission{UserID: "u1", CustomPermissions: []id.PermissionID{read.ID}}, read),
			want:  []stage{stageSuperuser, stageOverride, stageRestriction, stageGrant},
			grant: true,
		},
		{
			name:  "empty override reaches role",
			view:  testView("employee", employee, &override.UserPermission{UserID: "u1"}, read),
			want:  []stage{stageSuperuser, stageOverride, stageRestriction, stageGrant, stageRole},
			grant: true,
		},
	}
	req := &Request{Module: access.ModuleHR, Action: access.ActionRead}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := run(tt.view, req, DefaultSuperuserRole)
			if !slices.Equal(ev.trace, tt.want) {
				t.Fatalf("expected stages %v, got %v", tt.want, ev.trace)
			}
			if ev.result == nil || ev.result.Granted != tt.grant {
				t.Fatalf("expected granted=%v, got %+v", tt.grant, ev.result)
			}
		})
	}
}

func TestStageString(t *testing.T) {
	if stageRestriction.String() != "restriction" {
		t.Fatalf("unexpected name %q", stageRestriction.String())
	}
	if stage(99).String() != "unknown" {
		t.Fatal("expected unknown for out-of-range stage")
	}
}

func TestMatchPermission(t *testing.T) {
	module := &permission.Permission{Module: access.ModuleDocuments, Actions: []access.Action{access.ActionRead}}
	typed := &permission.Permission{Module: access.ModuleDocuments, Actions: []access.Action{access.ActionRead}, Resource: &access.Qualifier{Type: "document"}}
	instance := &permission.Permission{Module: access.ModuleDocuments, Actions: []access.Action{access.ActionRead}, Resource: &access.Qualifier{Type: "document", ID: "42"}}

	doc42 := &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: "42"}}
	doc7 := &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: "7"}}
	folder := &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "folder", ID: "42"}}
	whole := &Request{Module: access.ModuleDocuments, Action: access.ActionRead}
	other := &Request{Module: access.ModuleHR, Action: access.ActionRead}
	write := &Request{Module: access.ModuleDocuments, Action: access.ActionUpdate}

	tests := []struct {
		name string
		p    *permission.Permission
		req  *Request
		want bool
	}{
		{"module-wide covers instance", module, doc42, true},
		{"module-wide covers whole module", module, whole, true},
		{"module mismatch", module, other, false},
		{"action mismatch", module, write, false},
		{"type covers any instance", typed, doc7, true},
		{"type mismatch", typed, folder, false},
		{"typed needs a resource", typed, whole, false},
		{"instance match", instance, doc42, true},
		{"instance mismatch", instance, doc7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchPermission(tt.p, tt.req); got != tt.want {
				t.Fatalf("matchPermission = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchResourceGrant(t *testing.T) {
	p := &permission.Permission{Module: access.ModuleHR, Actions: []access.Action{access.ActionApprove, access.ActionRead}}
	g1 := &Request{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g1"}}

	tests := []struct {
		name string
		rp   override.ResourcePermission
		req  *Request
		want bool
	}{
		{"exact instance", override.ResourcePermission{ResourceType: "goal", ResourceID: "g1"}, g1, true},
		{"empty id is wildcard", override.ResourcePermission{ResourceType: "goal"}, g1, true},
		{"star is wildcard", override.ResourcePermission{ResourceType: "goal", ResourceID: "*"}, g1, true},
		{"other instance", override.ResourcePermission{ResourceType: "goal", ResourceID: "g2"}, g1, false},
		{"other type", override.ResourcePermission{ResourceType: "review", ResourceID: "g1"}, g1, false},
		{"narrowed away", override.ResourcePermission{ResourceType: "goal", Actions: []access.Action{access.ActionRead}}, g1, false},
		{"no request resource", override.ResourcePermission{ResourceType: "goal"}, &Request{Module: access.ModuleHR, Action: access.ActionApprove}, false},
		{"permission lacks action", override.ResourcePermission{ResourceType: "goal"}, &Request{Module: access.ModuleHR, Action: access.ActionDelete, Resource: &access.Qualifier{Type: "goal", ID: "g1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchResourceGrant(tt.rp, p, tt.req); got != tt.want {
				t.Fatalf("matchResourceGrant = %v, want %v", got, tt.want)
			}
		})
	}
}
