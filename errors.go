package portcullis

import "errors"

var (
	// ErrActorNotFound is returned when an actor profile cannot be found.
	ErrActorNotFound = errors.New("portcullis: actor not found")

	// ErrStoreUnavailable wraps a failed store read during evaluation.
	ErrStoreUnavailable = errors.New("portcullis: store unavailable")

	// ErrDanglingReference marks a role or permission id that no longer
	// resolves. It is logged, never returned from Authorize.
	ErrDanglingReference = errors.New("portcullis: dangling reference")

	// ErrCancelled is returned when the caller cancels an in-flight decision.
	ErrCancelled = errors.New("portcullis: evaluation cancelled")

	// ErrInvalidRequest is returned when Authorize is given a nil request.
	ErrInvalidRequest = errors.New("portcullis: invalid request")

	// ErrAccessDenied is returned by Enforce when a decision is denied.
	ErrAccessDenied = errors.New("portcullis: access denied")

	// ErrPermissionNotFound is returned when a permission cannot be found.
	ErrPermissionNotFound = errors.New("portcullis: permission not found")

	// ErrRoleNotFound is returned when a role cannot be found.
	ErrRoleNotFound = errors.New("portcullis: role not found")

	// ErrOverrideNotFound is returned when an actor has no override record.
	ErrOverrideNotFound = errors.New("portcullis: user permission not found")

	// ErrDecisionLogNotFound is returned when a decision log entry cannot be found.
	ErrDecisionLogNotFound = errors.New("portcullis: decision log not found")

	// ErrDuplicateRoleName is returned when a role name is already taken.
	ErrDuplicateRoleName = errors.New("portcullis: role name already exists")

	// ErrDuplicatePermissionName is returned when a permission name is already taken.
	ErrDuplicatePermissionName = errors.New("portcullis: permission name already exists")

	// ErrDuplicateActor is returned when an actor id is already registered.
	ErrDuplicateActor = errors.New("portcullis: actor already exists")

	// ErrInvalidPermission is returned when a permission fails validation.
	ErrInvalidPermission = errors.New("portcullis: invalid permission")

	// ErrInvalidRole is returned when a role fails validation.
	ErrInvalidRole = errors.New("portcullis: invalid role")

	// ErrInvalidOverride is returned when a user permission record fails validation.
	ErrInvalidOverride = errors.New("portcullis: invalid user permission")

	// ErrInvalidActor is returned when an actor profile fails validation.
	ErrInvalidActor = errors.New("portcullis: invalid actor")

	// ErrConflictingOverride is returned when a grant is added for a
	// permission the actor is restricted from, or the reverse.
	ErrConflictingOverride = errors.New("portcullis: permission is both granted and restricted")

	// ErrSystemRoleImmutable is returned when trying to modify a system role.
	ErrSystemRoleImmutable = errors.New("portcullis: system role cannot be modified")

	// ErrSystemPermissionImmutable is returned when trying to modify a system permission.
	ErrSystemPermissionImmutable = errors.New("portcullis: system permission cannot be modified")
)
