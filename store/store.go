// Package store defines the aggregate persistence interface. Each subsystem
// (permission, role, override, actor, decisionlog) defines its own store
// interface and the composite Store composes them all.
// Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"
	"errors"

	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/role"
)

var (
	// ErrNotFound is wrapped by every backend when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is wrapped by every backend when a unique key (a
	// permission name, a role name or an actor id) is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
)

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err signals a unique key violation.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// Reader is the read-only surface consulted while evaluating a decision.
type Reader interface {
	actor.Reader
	override.Reader
	role.Reader
	permission.Reader
}

// Store is the aggregate persistence interface. A single backend implements
// all of the subsystem stores.
type Store interface {
	permission.Store
	role.Store
	override.Store
	actor.Store
	decisionlog.Store

	// ReadSnapshot runs fn against a Reader that observes one consistent
	// view of the data. Backends without snapshot support pass a Reader
	// over live data.
	ReadSnapshot(ctx context.Context, fn func(Reader) error) error

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
