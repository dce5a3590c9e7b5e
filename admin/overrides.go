package admin

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/store"
)

// SetOverrideInput replaces an actor's whole override record.
type SetOverrideInput struct {
	UserID                string                        `json:"user_id" validate:"required,max=128"`
	RoleID                id.RoleID                     `json:"role_id"`
	CustomPermissions     []id.PermissionID             `json:"custom_permissions,omitempty"`
	RestrictedPermissions []id.PermissionID             `json:"restricted_permissions,omitempty"`
	ResourcePermissions   []override.ResourcePermission `json:"resource_permissions,omitempty"`
}

// GetOverride returns the override record of an actor.
func (s *Service) GetOverride(ctx context.Context, userID string) (*override.UserPermission, error) {
	u, err := s.store.GetUserPermission(ctx, userID)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrOverrideNotFound)
	}
	return u, nil
}

// ListOverrides returns override records matching filter.
func (s *Service) ListOverrides(ctx context.Context, filter *override.ListFilter) ([]*override.UserPermission, error) {
	list, err := s.store.ListUserPermissions(ctx, filter)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrOverrideNotFound)
	}
	return list, nil
}

// SetOverride validates and stores a complete override record. A permission
// id may not be both granted and restricted.
func (s *Service) SetOverride(ctx context.Context, in *SetOverrideInput) (*override.UserPermission, error) {
	if err := s.check(in, portcullis.ErrInvalidOverride); err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is blank", portcullis.ErrInvalidOverride)
	}
	for _, pid := range in.CustomPermissions {
		if slices.Contains(in.RestrictedPermissions, pid) {
			return nil, fmt.Errorf("%w: %s is both granted and restricted", portcullis.ErrConflictingOverride, pid)
		}
	}
	if !in.RoleID.IsNil() {
		if _, err := s.GetRole(ctx, in.RoleID); err != nil {
			return nil, err
		}
	}
	custom, err := s.resolvePermissions(ctx, in.CustomPermissions, portcullis.ErrInvalidOverride)
	if err != nil {
		return nil, err
	}
	restricted, err := s.resolvePermissions(ctx, in.RestrictedPermissions, portcullis.ErrInvalidOverride)
	if err != nil {
		return nil, err
	}
	var grants []override.ResourcePermission
	for _, raw := range in.ResourcePermissions {
		rp, err := s.checkResourceGrant(ctx, raw)
		if err != nil {
			return nil, err
		}
		if slices.Contains(restricted, rp.PermissionID) {
			return nil, fmt.Errorf("%w: %s is restricted", portcullis.ErrConflictingOverride, rp.PermissionID)
		}
		grants = replaceResourceGrant(grants, rp)
	}

	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()

	now := s.timestamp()
	u := &override.UserPermission{
		UserID:                userID,
		RoleID:                in.RoleID,
		CustomPermissions:     custom,
		RestrictedPermissions: restricted,
		ResourcePermissions:   grants,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if existing, err := s.store.GetUserPermission(ctx, userID); err == nil {
		u.CreatedAt = existing.CreatedAt
	} else if !store.IsNotFound(err) {
		return nil, storeErr(err, portcullis.ErrOverrideNotFound)
	}
	if err := s.saveOverride(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteOverride removes an actor's override record. The actor falls back
// to evaluation by role name.
func (s *Service) DeleteOverride(ctx context.Context, userID string) error {
	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()

	if err := s.store.DeleteUserPermission(ctx, userID); err != nil {
		return storeErr(err, portcullis.ErrOverrideNotFound)
	}
	s.invalidateActor(ctx, userID)

	if s.plugins != nil {
		s.plugins.EmitOverrideDeleted(ctx, userID)
	}
	s.logger.Info("override deleted", "user_id", userID)
	return nil
}

// GrantPermission adds permID to the actor's custom grants, creating the
// override record when the actor has none.
func (s *Service) GrantPermission(ctx context.Context, userID string, permID id.PermissionID) (*override.UserPermission, error) {
	if _, err := s.GetPermission(ctx, permID); err != nil {
		return nil, err
	}
	return s.mutateOverride(ctx, userID, true, func(u *override.UserPermission) error {
		if u.IsRestricted(permID) {
			return fmt.Errorf("%w: %s is restricted", portcullis.ErrConflictingOverride, permID)
		}
		if !u.IsGranted(permID) {
			u.CustomPermissions = append(u.CustomPermissions, permID)
		}
		return nil
	})
}

// RevokePermission removes permID from the actor's custom grants.
func (s *Service) RevokePermission(ctx context.Context, userID string, permID id.PermissionID) (*override.UserPermission, error) {
	return s.mutateOverride(ctx, userID, false, func(u *override.UserPermission) error {
		u.CustomPermissions = slices.DeleteFunc(u.CustomPermissions, func(p id.PermissionID) bool { return p == permID })
		return nil
	})
}

// RestrictPermission adds permID to the actor's restrictions, creating the
// override record when the actor has none.
func (s *Service) RestrictPermission(ctx context.Context, userID string, permID id.PermissionID) (*override.UserPermission, error) {
	if _, err := s.GetPermission(ctx, permID); err != nil {
		return nil, err
	}
	return s.mutateOverride(ctx, userID, true, func(u *override.UserPermission) error {
		if u.IsGranted(permID) {
			return fmt.Errorf("%w: %s is granted", portcullis.ErrConflictingOverride, permID)
		}
		for _, rp := range u.ResourcePermissions {
			if rp.PermissionID == permID {
				return fmt.Errorf("%w: %s has a resource grant", portcullis.ErrConflictingOverride, permID)
			}
		}
		if !u.IsRestricted(permID) {
			u.RestrictedPermissions = append(u.RestrictedPermissions, permID)
		}
		return nil
	})
}

// UnrestrictPermission removes permID from the actor's restrictions.
func (s *Service) UnrestrictPermission(ctx context.Context, userID string, permID id.PermissionID) (*override.UserPermission, error) {
	return s.mutateOverride(ctx, userID, false, func(u *override.UserPermission) error {
		u.RestrictedPermissions = slices.DeleteFunc(u.RestrictedPermissions, func(p id.PermissionID) bool { return p == permID })
		return nil
	})
}

// GrantResource adds or replaces a resource-scoped grant. A grant for the
// same permission and resource replaces the earlier one.
func (s *Service) GrantResource(ctx context.Context, userID string, rp override.ResourcePermission) (*override.UserPermission, error) {
	rp, err := s.checkResourceGrant(ctx, rp)
	if err != nil {
		return nil, err
	}
	return s.mutateOverride(ctx, userID, true, func(u *override.UserPermission) error {
		if u.IsRestricted(rp.PermissionID) {
			return fmt.Errorf("%w: %s is restricted", portcullis.ErrConflictingOverride, rp.PermissionID)
		}
		u.ResourcePermissions = replaceResourceGrant(u.ResourcePermissions, rp)
		return nil
	})
}

// RevokeResource removes the resource-scoped grant matching rp's permission
// and resource.
func (s *Service) RevokeResource(ctx context.Context, userID string, rp override.ResourcePermission) (*override.UserPermission, error) {
	return s.mutateOverride(ctx, userID, false, func(u *override.UserPermission) error {
		u.ResourcePermissions = slices.DeleteFunc(u.ResourcePermissions, rp.Same)
		return nil
	})
}

// AssignRole points the actor's override record at roleID. That role takes
// precedence over the role named on the actor's profile.
func (s *Service) AssignRole(ctx context.Context, userID string, roleID id.RoleID) (*override.UserPermission, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.mutateOverride(ctx, userID, true, func(u *override.UserPermission) error {
		u.RoleID = roleID
		return nil
	})
}

// ClearRole removes the role reference from the actor's override record.
func (s *Service) ClearRole(ctx context.Context, userID string) (*override.UserPermission, error) {
	return s.mutateOverride(ctx, userID, false, func(u *override.UserPermission) error {
		u.RoleID = id.Nil
		return nil
	})
}

// mutateOverride runs fn over the actor's current record and stores the
// result. When create is set a missing record starts out empty.
func (s *Service) mutateOverride(ctx context.Context, userID string, create bool, fn func(*override.UserPermission) error) (*override.UserPermission, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is blank", portcullis.ErrInvalidOverride)
	}

	s.overrideMu.Lock()
	defer s.overrideMu.Unlock()

	u, err := s.store.GetUserPermission(ctx, userID)
	switch {
	case err == nil:
	case store.IsNotFound(err) && create:
		u = &override.UserPermission{UserID: userID, CreatedAt: s.timestamp()}
	default:
		return nil, storeErr(err, portcullis.ErrOverrideNotFound)
	}

	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.timestamp()
	if err := s.saveOverride(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// saveOverride persists u. Callers hold overrideMu.
func (s *Service) saveOverride(ctx context.Context, u *override.UserPermission) error {
	if err := s.store.SaveUserPermission(ctx, u); err != nil {
		return storeErr(err, portcullis.ErrOverrideNotFound)
	}
	s.invalidateActor(ctx, u.UserID)

	if s.plugins != nil {
		s.plugins.EmitOverrideUpdated(ctx, u)
	}
	s.logger.Info("override updated",
		"user_id", u.UserID,
		"custom", len(u.CustomPermissions),
		"restricted", len(u.RestrictedPermissions),
		"resource", len(u.ResourcePermissions),
	)
	return nil
}

// checkResourceGrant validates rp against the catalog. Narrowing actions
// must be a subset of the permission's actions.
func (s *Service) checkResourceGrant(ctx context.Context, rp override.ResourcePermission) (override.ResourcePermission, error) {
	rp.ResourceType = strings.TrimSpace(rp.ResourceType)
	rp.ResourceID = strings.TrimSpace(rp.ResourceID)
	if rp.ResourceType == "" || strings.Contains(rp.ResourceType, ":") {
		return rp, fmt.Errorf("%w: resource_type %q", portcullis.ErrInvalidOverride, rp.ResourceType)
	}
	if rp.ResourceID == access.Wildcard {
		rp.ResourceID = ""
	}
	for _, a := range rp.Actions {
		if !a.Valid() {
			return rp, fmt.Errorf("%w: unknown action %q", portcullis.ErrInvalidOverride, a)
		}
	}
	rp.Actions = uniqueActions(rp.Actions)
	if len(rp.Actions) == 0 {
		rp.Actions = nil
	}

	p, err := s.GetPermission(ctx, rp.PermissionID)
	if err != nil {
		return rp, err
	}
	if !access.SubsetOf(rp.Actions, p.Actions) {
		return rp, fmt.Errorf("%w: actions %v exceed permission %s", portcullis.ErrInvalidOverride, rp.Actions, p.Name)
	}
	return rp, nil
}

func replaceResourceGrant(list []override.ResourcePermission, rp override.ResourcePermission) []override.ResourcePermission {
	if i := slices.IndexFunc(list, rp.Same); i >= 0 {
		list[i] = rp
		return list
	}
	return append(list, rp)
}
