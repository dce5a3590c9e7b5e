// Package access defines the closed vocabulary shared between the permission
// catalog and every caller: portal modules, action verbs, and resource
// qualifiers. Values are validated when catalog records are written so a
// request and a permission can never silently diverge on spelling.
package access

import (
	"fmt"
	"slices"
	"strings"
)

// Version is bumped whenever a module or action is added or removed.
const Version = 1

// Module is a coarse functional area of the portal.
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModuleUsers         Module = "users"
	ModuleHR            Module = "hr"
	ModuleLeave         Module = "leave"
	ModulePerformance   Module = "performance"
	ModuleDocuments     Module = "documents"
	ModuleAssets        Module = "assets"
	ModuleProjects      Module = "projects"
	ModuleReports       Module = "reports"
	ModuleNotifications Module = "notifications"
	ModuleAdmin         Module = "admin"
)

var modules = []Module{
	ModuleDashboard,
	ModuleUsers,
	ModuleHR,
	ModuleLeave,
	ModulePerformance,
	ModuleDocuments,
	ModuleAssets,
	ModuleProjects,
	ModuleReports,
	ModuleNotifications,
	ModuleAdmin,
}

// Modules returns every known module in declaration order.
func Modules() []Module { return slices.Clone(modules) }

// Valid reports whether m is part of the enumeration.
func (m Module) Valid() bool { return slices.Contains(modules, m) }

func (m Module) String() string { return string(m) }

// ParseModule normalises s and checks it against the enumeration.
func ParseModule(s string) (Module, error) {
	m := Module(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("access: unknown module %q", s)
	}
	return m, nil
}

// Action is a verb describing what may be done within a module. Each verb is
// distinct; "manage" does not imply any other action.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionAssign  Action = "assign"
	ActionExport  Action = "export"
	ActionManage  Action = "manage"
)

var actions = []Action{
	ActionCreate,
	ActionRead,
	ActionUpdate,
	ActionDelete,
	ActionApprove,
	ActionAssign,
	ActionExport,
	ActionManage,
}

// Actions returns every known action in declaration order.
func Actions() []Action { return slices.Clone(actions) }

// Valid reports whether a is part of the enumeration.
func (a Action) Valid() bool { return slices.Contains(actions, a) }

func (a Action) String() string { return string(a) }

// ParseAction normalises s and checks it against the enumeration.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("access: unknown action %q", s)
	}
	return a, nil
}

// ParseActions parses every element of ss. Duplicates are collapsed while
// preserving first-seen order.
func ParseActions(ss []string) ([]Action, error) {
	out := make([]Action, 0, len(ss))
	for _, s := range ss {
		a, err := ParseAction(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ContainsAction reports whether set holds a.
func ContainsAction(set []Action, a Action) bool { return slices.Contains(set, a) }

// SubsetOf reports whether every element of sub is in super.
func SubsetOf(sub, super []Action) bool {
	for _, a := range sub {
		if !slices.Contains(super, a) {
			return false
		}
	}
	return true
}
