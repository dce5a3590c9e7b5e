package access

import (
	"fmt"
	"strings"
)

// Wildcard is the resource id that matches every instance of a type.
const Wildcard = "*"

// Qualifier narrows a permission or a request to one resource type, or to
// one instance of that type when ID is set. An empty ID (or Wildcard) means
// every instance.
type Qualifier struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// IsWildcard reports whether q covers every instance of its type.
func (q Qualifier) IsWildcard() bool { return q.ID == "" || q.ID == Wildcard }

// String encodes q as "type" or "type:id".
func (q Qualifier) String() string {
	if q.IsWildcard() {
		return q.Type
	}
	return q.Type + ":" + q.ID
}

// Covers reports whether q (declared on a grant) applies to the concrete
// resource r named by a request.
func (q Qualifier) Covers(r Qualifier) bool {
	if q.Type != r.Type {
		return false
	}
	return q.IsWildcard() || q.ID == r.ID
}

// ParseQualifier decodes "type" or "type:id". The empty string yields nil,
// meaning the whole module.
func ParseQualifier(s string) (*Qualifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil //nolint:nilnil // absent qualifier is a valid value
	}
	typ, rid, _ := strings.Cut(s, ":")
	if typ == "" {
		return nil, fmt.Errorf("access: resource qualifier %q has no type", s)
	}
	q := &Qualifier{Type: typ, ID: rid}
	if q.ID == Wildcard {
		q.ID = ""
	}
	return q, nil
}

// FormatQualifier is the inverse of ParseQualifier.
func FormatQualifier(q *Qualifier) string {
	if q == nil {
		return ""
	}
	return q.String()
}
