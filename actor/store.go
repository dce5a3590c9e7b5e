package actor

import "context"

// Reader is the read side of the actor store used during evaluation.
type Reader interface {
	// GetActorRoleName returns the role name declared on the actor's
	// profile.
	GetActorRoleName(ctx context.Context, actorID string) (string, error)
}

// Store defines persistence operations for actor profiles.
type Store interface {
	Reader

	// CreateActor persists a new actor profile.
	CreateActor(ctx context.Context, a *Actor) error

	// GetActor retrieves an actor profile by ID.
	GetActor(ctx context.Context, actorID string) (*Actor, error)

	// UpdateActor persists changes to an actor profile.
	UpdateActor(ctx context.Context, a *Actor) error

	// DeleteActor removes an actor profile.
	DeleteActor(ctx context.Context, actorID string) error

	// ListActors returns actors matching the filter.
	ListActors(ctx context.Context, filter *ListFilter) ([]*Actor, error)
}
