// Package permission defines the Permission catalog entity and its store
// interface.
package permission

import (
	"slices"
	"time"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
)

// Permission declares which actions may be performed within one module,
// optionally narrowed to a resource type or a single resource instance.
type Permission struct {
	ID          id.PermissionID   `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	Description string            `json:"description,omitempty" db:"description"`
	Module      access.Module     `json:"module" db:"module"`
	Actions     []access.Action   `json:"actions" db:"actions"`
	Resource    *access.Qualifier `json:"resource,omitempty" db:"resource"`

	// Condition is an opaque policy-expression marker. It is stored and
	// returned but never evaluated.
	Condition string `json:"condition,omitempty" db:"condition"`

	IsSystem  bool      `json:"is_system" db:"is_system"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Allows reports whether a is one of the permission's actions.
func (p *Permission) Allows(a access.Action) bool {
	return slices.Contains(p.Actions, a)
}

// Clone returns a deep copy of p.
func (p *Permission) Clone() *Permission {
	cp := *p
	cp.Actions = slices.Clone(p.Actions)
	if p.Resource != nil {
		r := *p.Resource
		cp.Resource = &r
	}
	return &cp
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	Module   access.Module `json:"module,omitempty"`
	Action   access.Action `json:"action,omitempty"`
	IsSystem *bool         `json:"is_system,omitempty"`
	Search   string        `json:"search,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Offset   int           `json:"offset,omitempty"`
}
