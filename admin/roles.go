package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
)

// CreateRoleInput describes a new role.
type CreateRoleInput struct {
	Name        string            `json:"name" validate:"required,max=64"`
	Description string            `json:"description,omitempty" validate:"max=512"`
	Level       int               `json:"level" validate:"gte=0,lte=1000"`
	Permissions []id.PermissionID `json:"permissions,omitempty"`
	IsSystem    bool              `json:"is_system,omitempty"`
}

// UpdateRoleInput carries the fields to change. A nil Permissions leaves
// the set as it is; an empty one clears it.
type UpdateRoleInput struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,max=64"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=512"`
	Level       *int              `json:"level,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Permissions []id.PermissionID `json:"permissions,omitempty"`
}

// CreateRole validates and persists a new role. Every listed permission
// must exist.
func (s *Service) CreateRole(ctx context.Context, in *CreateRoleInput) (*role.Role, error) {
	if err := s.check(in, portcullis.ErrInvalidRole); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is blank", portcullis.ErrInvalidRole)
	}
	perms, err := s.resolvePermissions(ctx, in.Permissions, portcullis.ErrInvalidRole)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	r := &role.Role{
		ID:          id.NewRoleID(),
		Name:        name,
		Description: in.Description,
		Level:       in.Level,
		Permissions: perms,
		IsSystem:    in.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateRole(ctx, r); err != nil {
		if store.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrDuplicateRoleName, name)
		}
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	// Actors may already name this role on their profile.
	s.invalidateAll(ctx)

	if s.plugins != nil {
		s.plugins.EmitRoleCreated(ctx, r)
	}
	s.logger.Info("role created",
		"role_id", r.ID.String(),
		"name", r.Name,
		"permissions", len(r.Permissions),
	)
	return r, nil
}

// GetRole returns a role by ID.
func (s *Service) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	r, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return r, nil
}

// GetRoleByName returns a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	r, err := s.store.GetRoleByName(ctx, name)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return r, nil
}

// ListRoles returns one page of roles and the unpaged total.
func (s *Service) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, int64, error) {
	list, err := s.store.ListRoles(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrRoleNotFound)
	}
	total, err := s.store.CountRoles(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return list, total, nil
}

// UpdateRole applies in to an existing role. System roles cannot be
// renamed.
func (s *Service) UpdateRole(ctx context.Context, roleID id.RoleID, in *UpdateRoleInput) (*role.Role, error) {
	if err := s.check(in, portcullis.ErrInvalidRole); err != nil {
		return nil, err
	}
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is blank", portcullis.ErrInvalidRole)
		}
		if r.IsSystem && name != r.Name {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrSystemRoleImmutable, r.Name)
		}
		r.Name = name
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.Level != nil {
		r.Level = *in.Level
	}
	if in.Permissions != nil {
		perms, err := s.resolvePermissions(ctx, in.Permissions, portcullis.ErrInvalidRole)
		if err != nil {
			return nil, err
		}
		r.Permissions = perms
	}
	r.UpdatedAt = s.timestamp()

	if err := s.store.UpdateRole(ctx, r); err != nil {
		if store.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrDuplicateRoleName, r.Name)
		}
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	s.invalidateAll(ctx)

	if s.plugins != nil {
		s.plugins.EmitRoleUpdated(ctx, r)
	}
	s.logger.Info("role updated", "role_id", r.ID.String(), "name", r.Name)
	return r, nil
}

// DeleteRole removes a role. Actors and overrides that reference it are not
// touched.
func (s *Service) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsSystem {
		return fmt.Errorf("%w: %s", portcullis.ErrSystemRoleImmutable, r.Name)
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return storeErr(err, portcullis.ErrRoleNotFound)
	}
	s.invalidateAll(ctx)

	if s.plugins != nil {
		s.plugins.EmitRoleDeleted(ctx, roleID)
	}
	s.logger.Info("role deleted", "role_id", roleID.String(), "name", r.Name)
	return nil
}

// AttachPermission adds one permission to a role's set.
func (s *Service) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*role.Role, error) {
	if _, err := s.GetPermission(ctx, permID); err != nil {
		return nil, err
	}
	if err := s.store.AttachPermission(ctx, roleID, permID); err != nil {
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return s.roleChanged(ctx, roleID)
}

// DetachPermission removes one permission from a role's set. The permission
// need not exist any more, so dangling ids can be cleaned up.
func (s *Service) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) (*role.Role, error) {
	if err := s.store.DetachPermission(ctx, roleID, permID); err != nil {
		return nil, storeErr(err, portcullis.ErrRoleNotFound)
	}
	return s.roleChanged(ctx, roleID)
}

func (s *Service) roleChanged(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	s.invalidateAll(ctx)
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if s.plugins != nil {
		s.plugins.EmitRoleUpdated(ctx, r)
	}
	return r, nil
}
