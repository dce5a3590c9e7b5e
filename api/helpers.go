package api

import (
	"errors"
	"fmt"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/id"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if isInvalid(err) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, portcullis.ErrSystemRoleImmutable) || errors.Is(err, portcullis.ErrSystemPermissionImmutable) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, portcullis.ErrDuplicateRoleName) ||
		errors.Is(err, portcullis.ErrDuplicatePermissionName) ||
		errors.Is(err, portcullis.ErrDuplicateActor) ||
		errors.Is(err, portcullis.ErrConflictingOverride) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, portcullis.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, portcullis.ErrRoleNotFound) ||
		errors.Is(err, portcullis.ErrPermissionNotFound) ||
		errors.Is(err, portcullis.ErrOverrideNotFound) ||
		errors.Is(err, portcullis.ErrActorNotFound) ||
		errors.Is(err, portcullis.ErrDecisionLogNotFound)
}

func isInvalid(err error) bool {
	return errors.Is(err, portcullis.ErrInvalidRequest) ||
		errors.Is(err, portcullis.ErrInvalidPermission) ||
		errors.Is(err, portcullis.ErrInvalidRole) ||
		errors.Is(err, portcullis.ErrInvalidOverride) ||
		errors.Is(err, portcullis.ErrInvalidActor)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func parseRoleID(s string) (id.RoleID, error) {
	rid, err := id.ParseRoleID(s)
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	return rid, nil
}

func parsePermissionID(s string) (id.PermissionID, error) {
	pid, err := id.ParsePermissionID(s)
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}
	return pid, nil
}

// parsePermissionIDs parses every entry of ss, failing on the first bad one.
func parsePermissionIDs(ss []string) ([]id.PermissionID, error) {
	if ss == nil {
		return nil, nil
	}
	out := make([]id.PermissionID, 0, len(ss))
	for _, s := range ss {
		pid, err := parsePermissionID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}
