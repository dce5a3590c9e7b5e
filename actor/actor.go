// Package actor defines the Actor profile entity. The engine reads only the
// declared role name; the rest of the profile belongs to the portal.
package actor

import "time"

// Actor is an authenticated principal of the portal.
type Actor struct {
	ID          string    `json:"id" db:"id"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Email       string    `json:"email,omitempty" db:"email"`
	RoleName    string    `json:"role_name" db:"role_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing actors.
type ListFilter struct {
	RoleName string `json:"role_name,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
