// Package id defines the TypeID-based identifiers used by catalog entities.
//
// Permissions, roles and decision log entries carry a prefix-qualified,
// K-sortable identifier of the form "prefix_suffix". Actors are identified by
// opaque strings handed in by the identity provider and are not modelled here.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixPermission  Prefix = "perm"
	PrefixRole        Prefix = "role"
	PrefixDecisionLog Prefix = "dlog"
)

// ID is the identifier type for all catalog entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "perm_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks its prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// PermissionID identifies a catalog permission (prefix "perm").
type PermissionID = ID

// RoleID identifies a role (prefix "role").
type RoleID = ID

// DecisionLogID identifies a decision audit entry (prefix "dlog").
type DecisionLogID = ID

// NewPermissionID generates a new permission ID.
func NewPermissionID() ID { return New(PrefixPermission) }

// NewRoleID generates a new role ID.
func NewRoleID() ID { return New(PrefixRole) }

// NewDecisionLogID generates a new decision log ID.
func NewDecisionLogID() ID { return New(PrefixDecisionLog) }

// ParsePermissionID parses s and validates the "perm" prefix.
func ParsePermissionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPermission) }

// ParseRoleID parses s and validates the "role" prefix.
func ParseRoleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRole) }

// ParseDecisionLogID parses s and validates the "dlog" prefix.
func ParseDecisionLogID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDecisionLog) }

// ParsePermissionIDs parses every element of ss, skipping malformed values.
// Stored id lists are written by this package, so a malformed entry can only
// come from manual tampering and is treated like a dangling reference.
func ParsePermissionIDs(ss []string) []ID {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		if pid, err := ParsePermissionID(s); err == nil {
			out = append(out, pid)
		}
	}
	return out
}

// Strings renders ids as their string forms.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
