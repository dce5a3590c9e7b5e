package admin

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/store"
)

// CreatePermissionInput describes a new catalog permission.
type CreatePermissionInput struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description,omitempty" validate:"max=512"`
	Module      access.Module   `json:"module" validate:"required,module"`
	Actions     []access.Action `json:"actions" validate:"required,min=1,dive,action"`
	Resource    string          `json:"resource,omitempty" validate:"omitempty,qualifier"`
	Condition   string          `json:"condition,omitempty" validate:"max=1024"`
	IsSystem    bool            `json:"is_system,omitempty"`
}

// UpdatePermissionInput carries the fields to change. Nil fields are left
// as they are.
type UpdatePermissionInput struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,max=128"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=512"`
	Module      *access.Module  `json:"module,omitempty" validate:"omitempty,module"`
	Actions     []access.Action `json:"actions,omitempty" validate:"omitempty,min=1,dive,action"`
	Resource    *string         `json:"resource,omitempty" validate:"omitempty,qualifier"`
	Condition   *string         `json:"condition,omitempty" validate:"omitempty,max=1024"`
}

// changesScope reports whether the update touches anything that affects
// matching.
func (in *UpdatePermissionInput) changesScope(p *permission.Permission) bool {
	if in.Name != nil && strings.TrimSpace(*in.Name) != p.Name {
		return true
	}
	if in.Module != nil && *in.Module != p.Module {
		return true
	}
	if in.Actions != nil && !slices.Equal(uniqueActions(in.Actions), p.Actions) {
		return true
	}
	return in.Resource != nil && *in.Resource != access.FormatQualifier(p.Resource)
}

// CreatePermission validates and persists a new permission.
func (s *Service) CreatePermission(ctx context.Context, in *CreatePermissionInput) (*permission.Permission, error) {
	if err := s.check(in, portcullis.ErrInvalidPermission); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is blank", portcullis.ErrInvalidPermission)
	}
	res, _ := access.ParseQualifier(in.Resource)

	now := s.timestamp()
	p := &permission.Permission{
		ID:          id.NewPermissionID(),
		Name:        name,
		Description: in.Description,
		Module:      in.Module,
		Actions:     uniqueActions(in.Actions),
		Resource:    res,
		Condition:   in.Condition,
		IsSystem:    in.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePermission(ctx, p); err != nil {
		if store.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrDuplicatePermissionName, name)
		}
		return nil, storeErr(err, portcullis.ErrPermissionNotFound)
	}

	if s.plugins != nil {
		s.plugins.EmitPermissionCreated(ctx, p)
	}
	s.logger.Info("permission created",
		"permission_id", p.ID.String(),
		"name", p.Name,
		"module", string(p.Module),
	)
	return p, nil
}

// GetPermission returns a permission by ID.
func (s *Service) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	p, err := s.store.GetPermission(ctx, permID)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	return p, nil
}

// GetPermissionByName returns a permission by its unique name.
func (s *Service) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	p, err := s.store.GetPermissionByName(ctx, name)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	return p, nil
}

// ListPermissions returns one page of permissions and the unpaged total.
func (s *Service) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, int64, error) {
	list, err := s.store.ListPermissions(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	total, err := s.store.CountPermissions(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	return list, total, nil
}

// UpdatePermission applies in to an existing permission. System permissions
// accept description and condition changes only.
func (s *Service) UpdatePermission(ctx context.Context, permID id.PermissionID, in *UpdatePermissionInput) (*permission.Permission, error) {
	if err := s.check(in, portcullis.ErrInvalidPermission); err != nil {
		return nil, err
	}
	p, err := s.GetPermission(ctx, permID)
	if err != nil {
		return nil, err
	}
	if p.IsSystem && in.changesScope(p) {
		return nil, fmt.Errorf("%w: %s", portcullis.ErrSystemPermissionImmutable, p.Name)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is blank", portcullis.ErrInvalidPermission)
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Module != nil {
		p.Module = *in.Module
	}
	if in.Actions != nil {
		p.Actions = uniqueActions(in.Actions)
	}
	if in.Resource != nil {
		p.Resource, _ = access.ParseQualifier(*in.Resource)
	}
	if in.Condition != nil {
		p.Condition = *in.Condition
	}
	p.UpdatedAt = s.timestamp()

	if err := s.store.UpdatePermission(ctx, p); err != nil {
		if store.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrDuplicatePermissionName, p.Name)
		}
		return nil, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	s.invalidateAll(ctx)

	if s.plugins != nil {
		s.plugins.EmitPermissionUpdated(ctx, p)
	}
	s.logger.Info("permission updated", "permission_id", p.ID.String(), "name", p.Name)
	return p, nil
}

// DeletePermission removes a permission. Roles and overrides that reference
// it are not touched.
func (s *Service) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	p, err := s.GetPermission(ctx, permID)
	if err != nil {
		return err
	}
	if p.IsSystem {
		return fmt.Errorf("%w: %s", portcullis.ErrSystemPermissionImmutable, p.Name)
	}
	if err := s.store.DeletePermission(ctx, permID); err != nil {
		return storeErr(err, portcullis.ErrPermissionNotFound)
	}
	s.invalidateAll(ctx)

	if s.plugins != nil {
		s.plugins.EmitPermissionDeleted(ctx, permID)
	}
	s.logger.Info("permission deleted", "permission_id", permID.String(), "name", p.Name)
	return nil
}

// resolvePermissions deduplicates ids and checks that each one exists.
func (s *Service) resolvePermissions(ctx context.Context, ids []id.PermissionID, invalid error) ([]id.PermissionID, error) {
	unique := make([]id.PermissionID, 0, len(ids))
	for _, pid := range ids {
		if pid.IsNil() || pid.Prefix() != id.PrefixPermission {
			return nil, fmt.Errorf("%w: %q is not a permission id", invalid, pid.String())
		}
		if !slices.Contains(unique, pid) {
			unique = append(unique, pid)
		}
	}
	if len(unique) == 0 {
		return unique, nil
	}

	found, err := s.store.ListPermissionsByIDs(ctx, unique)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrPermissionNotFound)
	}
	if len(found) == len(unique) {
		return unique, nil
	}
	known := make(map[string]struct{}, len(found))
	for _, p := range found {
		known[p.ID.String()] = struct{}{}
	}
	for _, pid := range unique {
		if _, ok := known[pid.String()]; !ok {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrPermissionNotFound, pid)
		}
	}
	return unique, nil
}
