// Package decisionlog defines the authorization decision audit Entry.
package decisionlog

import (
	"time"

	"github.com/xraph/portcullis/id"
)

// Entry is a single authorization decision audit record.
type Entry struct {
	ID           id.DecisionLogID `json:"id" db:"id"`
	ActorID      string           `json:"actor_id" db:"actor_id"`
	Module       string           `json:"module" db:"module"`
	Action       string           `json:"action" db:"action"`
	ResourceType string           `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   string           `json:"resource_id,omitempty" db:"resource_id"`
	Granted      bool             `json:"granted" db:"granted"`
	Reason       string           `json:"reason" db:"reason"`
	Detail       string           `json:"detail,omitempty" db:"detail"`
	EvalTimeNs   int64            `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying decision logs.
type QueryFilter struct {
	ActorID string     `json:"actor_id,omitempty"`
	Module  string     `json:"module,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Granted *bool      `json:"granted,omitempty"`
	After   *time.Time `json:"after,omitempty"`
	Before  *time.Time `json:"before,omitempty"`
	Limit   int        `json:"limit,omitempty"`
	Offset  int        `json:"offset,omitempty"`
}
