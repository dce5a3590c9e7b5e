// Package catalog declares the default permission catalog and role set of
// the portal. The administration service installs it on first start.
package catalog

import (
	"fmt"

	"github.com/xraph/portcullis/access"
)

// PermissionSpec declares one catalog permission. Resource uses the
// "type" or "type:id" qualifier form; empty means the whole module.
type PermissionSpec struct {
	Name        string
	Description string
	Module      access.Module
	Actions     []access.Action
	Resource    string
}

// RoleSpec declares one role by the names of its permissions.
type RoleSpec struct {
	Name        string
	Description string
	Level       int
	Permissions []string
	System      bool
}

// Catalog is a complete set of permissions and roles.
type Catalog struct {
	Permissions []PermissionSpec
	Roles       []RoleSpec
}

// Role names of the default catalog.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleHRManager  = "hr_manager"
	RoleManager    = "manager"
	RoleEmployee   = "employee"
)

func perm(module access.Module, suffix, description string, actions ...access.Action) PermissionSpec {
	return PermissionSpec{
		Name:        string(module) + "." + suffix,
		Description: description,
		Module:      module,
		Actions:     actions,
	}
}

// Defaults returns the default portal catalog. Every module gets read,
// write and delete permissions; modules with workflow verbs get extra ones.
func Defaults() *Catalog {
	var perms []PermissionSpec
	for _, m := range access.Modules() {
		perms = append(perms,
			perm(m, "read", "View "+string(m), access.ActionRead),
			perm(m, "write", "Create and edit "+string(m), access.ActionCreate, access.ActionUpdate),
			perm(m, "delete", "Delete "+string(m), access.ActionDelete),
		)
	}
	perms = append(perms,
		perm(access.ModuleHR, "approve", "Approve HR requests", access.ActionApprove),
		perm(access.ModuleLeave, "approve", "Approve leave requests", access.ActionApprove),
		perm(access.ModulePerformance, "approve", "Approve goals and reviews", access.ActionApprove),
		perm(access.ModuleAssets, "assign", "Assign assets to employees", access.ActionAssign),
		perm(access.ModuleProjects, "assign", "Assign project members", access.ActionAssign),
		perm(access.ModuleDocuments, "export", "Export documents", access.ActionExport),
		perm(access.ModuleReports, "export", "Export reports", access.ActionExport),
		perm(access.ModuleUsers, "manage", "Manage user accounts", access.ActionManage),
		perm(access.ModuleAdmin, "manage", "Manage system settings", access.ActionManage),
	)

	all := make([]string, len(perms))
	for i, p := range perms {
		all[i] = p.Name
	}

	return &Catalog{
		Permissions: perms,
		Roles: []RoleSpec{
			{
				Name:        RoleSuperAdmin,
				Description: "Unrestricted system administrator",
				Level:       100,
				System:      true,
			},
			{
				Name:        RoleAdmin,
				Description: "Portal administrator",
				Level:       90,
				Permissions: all,
				System:      true,
			},
			{
				Name:        RoleHRManager,
				Description: "Human resources manager",
				Level:       70,
				Permissions: []string{
					"dashboard.read", "notifications.read",
					"users.read",
					"hr.read", "hr.write", "hr.delete", "hr.approve",
					"leave.read", "leave.write", "leave.approve",
					"performance.read", "performance.write", "performance.approve",
					"documents.read", "documents.write",
					"reports.read", "reports.export",
				},
			},
			{
				Name:        RoleManager,
				Description: "Team manager",
				Level:       50,
				Permissions: []string{
					"dashboard.read", "notifications.read",
					"hr.read",
					"leave.read", "leave.approve",
					"performance.read", "performance.approve",
					"projects.read", "projects.write", "projects.assign",
					"documents.read",
					"reports.read",
				},
			},
			{
				Name:        RoleEmployee,
				Description: "Regular employee",
				Level:       10,
				Permissions: []string{
					"dashboard.read", "notifications.read",
					"leave.read", "leave.write",
					"performance.read",
					"documents.read",
					"projects.read",
					"assets.read",
				},
			},
		},
	}
}

// Validate checks that names are unique, every action and module is known
// and every role refers to declared permissions only.
func (c *Catalog) Validate() error {
	names := make(map[string]struct{}, len(c.Permissions))
	for _, p := range c.Permissions {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("catalog: duplicate permission %q", p.Name)
		}
		names[p.Name] = struct{}{}
		if !p.Module.Valid() {
			return fmt.Errorf("catalog: permission %q: unknown module %q", p.Name, p.Module)
		}
		if len(p.Actions) == 0 {
			return fmt.Errorf("catalog: permission %q has no actions", p.Name)
		}
		for _, a := range p.Actions {
			if !a.Valid() {
				return fmt.Errorf("catalog: permission %q: unknown action %q", p.Name, a)
			}
		}
		if _, err := access.ParseQualifier(p.Resource); err != nil {
			return fmt.Errorf("catalog: permission %q: %w", p.Name, err)
		}
	}

	roles := make(map[string]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		if _, dup := roles[r.Name]; dup {
			return fmt.Errorf("catalog: duplicate role %q", r.Name)
		}
		roles[r.Name] = struct{}{}
		for _, pn := range r.Permissions {
			if _, ok := names[pn]; !ok {
				return fmt.Errorf("catalog: role %q references unknown permission %q", r.Name, pn)
			}
		}
	}
	return nil
}
