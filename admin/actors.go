package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/store"
)

// CreateActorInput describes a new actor profile.
type CreateActorInput struct {
	ID          string `json:"id" validate:"required,max=128"`
	DisplayName string `json:"display_name,omitempty" validate:"max=256"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	RoleName    string `json:"role_name" validate:"required,max=64"`
}

// UpdateActorInput carries the fields to change.
type UpdateActorInput struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=256"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	RoleName    *string `json:"role_name,omitempty" validate:"omitempty,max=64"`
}

// CreateActor persists a new actor profile. The declared role must exist.
func (s *Service) CreateActor(ctx context.Context, in *CreateActorInput) (*actor.Actor, error) {
	if err := s.check(in, portcullis.ErrInvalidActor); err != nil {
		return nil, err
	}
	actorID := strings.TrimSpace(in.ID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: id is blank", portcullis.ErrInvalidActor)
	}
	roleName := strings.TrimSpace(in.RoleName)
	if _, err := s.GetRoleByName(ctx, roleName); err != nil {
		return nil, err
	}

	now := s.timestamp()
	a := &actor.Actor{
		ID:          actorID,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		RoleName:    roleName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateActor(ctx, a); err != nil {
		if store.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", portcullis.ErrDuplicateActor, actorID)
		}
		return nil, storeErr(err, portcullis.ErrActorNotFound)
	}
	s.invalidateActor(ctx, actorID)

	if s.plugins != nil {
		s.plugins.EmitActorUpdated(ctx, a)
	}
	s.logger.Info("actor created", "actor_id", a.ID, "role", a.RoleName)
	return a, nil
}

// GetActor returns an actor profile.
func (s *Service) GetActor(ctx context.Context, actorID string) (*actor.Actor, error) {
	a, err := s.store.GetActor(ctx, actorID)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrActorNotFound)
	}
	return a, nil
}

// ListActors returns actor profiles matching filter.
func (s *Service) ListActors(ctx context.Context, filter *actor.ListFilter) ([]*actor.Actor, error) {
	list, err := s.store.ListActors(ctx, filter)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrActorNotFound)
	}
	return list, nil
}

// UpdateActor applies in to an existing profile.
func (s *Service) UpdateActor(ctx context.Context, actorID string, in *UpdateActorInput) (*actor.Actor, error) {
	if err := s.check(in, portcullis.ErrInvalidActor); err != nil {
		return nil, err
	}
	a, err := s.GetActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		a.DisplayName = *in.DisplayName
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	if in.RoleName != nil {
		roleName := strings.TrimSpace(*in.RoleName)
		if _, err := s.GetRoleByName(ctx, roleName); err != nil {
			return nil, err
		}
		a.RoleName = roleName
	}
	a.UpdatedAt = s.timestamp()

	if err := s.store.UpdateActor(ctx, a); err != nil {
		return nil, storeErr(err, portcullis.ErrActorNotFound)
	}
	s.invalidateActor(ctx, a.ID)

	if s.plugins != nil {
		s.plugins.EmitActorUpdated(ctx, a)
	}
	s.logger.Info("actor updated", "actor_id", a.ID, "role", a.RoleName)
	return a, nil
}

// ChangeRole sets the role name declared on an actor's profile.
func (s *Service) ChangeRole(ctx context.Context, actorID, roleName string) (*actor.Actor, error) {
	return s.UpdateActor(ctx, actorID, &UpdateActorInput{RoleName: &roleName})
}

// DeleteActor removes an actor profile. Its override record, if any, is
// kept.
func (s *Service) DeleteActor(ctx context.Context, actorID string) error {
	if err := s.store.DeleteActor(ctx, actorID); err != nil {
		return storeErr(err, portcullis.ErrActorNotFound)
	}
	s.invalidateActor(ctx, actorID)
	s.logger.Info("actor deleted", "actor_id", actorID)
	return nil
}
