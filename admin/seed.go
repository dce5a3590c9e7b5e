package admin

import (
	"context"
	"fmt"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/catalog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
)

// SeedResult counts what a seeding run created and what already existed.
type SeedResult struct {
	PermissionsCreated int `json:"permissions_created"`
	PermissionsKept    int `json:"permissions_kept"`
	RolesCreated       int `json:"roles_created"`
	RolesKept          int `json:"roles_kept"`
}

// InitializeDefaultCatalog installs the default portal catalog.
func (s *Service) InitializeDefaultCatalog(ctx context.Context) (*SeedResult, error) {
	return s.Seed(ctx, catalog.Defaults())
}

// Seed installs c. It is idempotent by name: permissions and roles that
// already exist are left as they are, so repeated runs never overwrite
// administrative edits.
func (s *Service) Seed(ctx context.Context, c *catalog.Catalog) (*SeedResult, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("admin: seed: %w", err)
	}

	res := &SeedResult{}
	byName := make(map[string]id.PermissionID, len(c.Permissions))
	for _, spec := range c.Permissions {
		p, created, err := s.seedPermission(ctx, spec)
		if err != nil {
			return nil, err
		}
		byName[spec.Name] = p.ID
		if created {
			res.PermissionsCreated++
		} else {
			res.PermissionsKept++
		}
	}

	for _, spec := range c.Roles {
		created, err := s.seedRole(ctx, spec, byName)
		if err != nil {
			return nil, err
		}
		if created {
			res.RolesCreated++
		} else {
			res.RolesKept++
		}
	}

	if res.PermissionsCreated > 0 || res.RolesCreated > 0 {
		s.invalidateAll(ctx)
	}
	if s.plugins != nil {
		s.plugins.EmitCatalogSeeded(ctx, res.PermissionsCreated, res.RolesCreated)
	}
	s.logger.Info("catalog seeded",
		"permissions_created", res.PermissionsCreated,
		"permissions_kept", res.PermissionsKept,
		"roles_created", res.RolesCreated,
		"roles_kept", res.RolesKept,
	)
	return res, nil
}

func (s *Service) seedPermission(ctx context.Context, spec catalog.PermissionSpec) (*permission.Permission, bool, error) {
	existing, err := s.store.GetPermissionByName(ctx, spec.Name)
	if err == nil {
		return existing, false, nil
	}
	if !store.IsNotFound(err) {
		return nil, false, storeErr(err, portcullis.ErrPermissionNotFound)
	}

	res, _ := access.ParseQualifier(spec.Resource)
	now := s.timestamp()
	p := &permission.Permission{
		ID:          id.NewPermissionID(),
		Name:        spec.Name,
		Description: spec.Description,
		Module:      spec.Module,
		Actions:     uniqueActions(spec.Actions),
		Resource:    res,
		IsSystem:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePermission(ctx, p); err != nil {
		// Lost a race with a concurrent seed.
		if store.IsDuplicate(err) {
			existing, err := s.store.GetPermissionByName(ctx, spec.Name)
			if err != nil {
				return nil, false, storeErr(err, portcullis.ErrPermissionNotFound)
			}
			return existing, false, nil
		}
		return nil, false, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	return p, true, nil
}

func (s *Service) seedRole(ctx context.Context, spec catalog.RoleSpec, byName map[string]id.PermissionID) (bool, error) {
	_, err := s.store.GetRoleByName(ctx, spec.Name)
	if err == nil {
		return false, nil
	}
	if !store.IsNotFound(err) {
		return false, storeErr(err, portcullis.ErrRoleNotFound)
	}

	perms := make([]id.PermissionID, 0, len(spec.Permissions))
	for _, name := range spec.Permissions {
		perms = append(perms, byName[name])
	}
	now := s.timestamp()
	r := &role.Role{
		ID:          id.NewRoleID(),
		Name:        spec.Name,
		Description: spec.Description,
		Level:       spec.Level,
		Permissions: perms,
		IsSystem:    spec.System,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateRole(ctx, r); err != nil {
		if store.IsDuplicate(err) {
			return false, nil
		}
		return false, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return true, nil
}
