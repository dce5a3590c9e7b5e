package catalog

import (
	"testing"

	"github.com/xraph/portcullis/access"
)

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultsCoverEveryModule(t *testing.T) {
	seen := make(map[access.Module]bool)
	for _, p := range Defaults().Permissions {
		seen[p.Module] = true
	}
	for _, m := range access.Modules() {
		if !seen[m] {
			t.Fatalf("module %s has no default permission", m)
		}
	}
}

func TestDefaultRoles(t *testing.T) {
	c := Defaults()
	levels := map[string]int{}
	for _, r := range c.Roles {
		levels[r.Name] = r.Level
	}
	want := map[string]int{
		RoleSuperAdmin: 100,
		RoleAdmin:      90,
		RoleHRManager:  70,
		RoleManager:    50,
		RoleEmployee:   10,
	}
	for name, level := range want {
		if levels[name] != level {
			t.Fatalf("role %s: expected level %d, got %d", name, level, levels[name])
		}
	}
}

func TestValidateRejectsUnknownPermission(t *testing.T) {
	c := &Catalog{
		Permissions: []PermissionSpec{{Name: "hr.read", Module: access.ModuleHR, Actions: []access.Action{access.ActionRead}}},
		Roles:       []RoleSpec{{Name: "x", Permissions: []string{"hr.write"}}},
	}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown permission reference")
	}
}

func TestValidateRejectsBadActions(t *testing.T) {
	c := &Catalog{Permissions: []PermissionSpec{{Name: "hr.fly", Module: access.ModuleHR, Actions: []access.Action{"fly"}}}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown action")
	}
	c = &Catalog{Permissions: []PermissionSpec{{Name: "hr.none", Module: access.ModuleHR}}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty action set")
	}
}
