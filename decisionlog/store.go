package decisionlog

import (
	"context"
	"time"

	"github.com/xraph/portcullis/id"
)

// Store defines persistence operations for decision audit logs.
type Store interface {
	// CreateDecisionLog persists a new entry.
	CreateDecisionLog(ctx context.Context, e *Entry) error

	// GetDecisionLog retrieves an entry by ID.
	GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*Entry, error)

	// ListDecisionLogs returns entries matching the filter, newest first.
	ListDecisionLogs(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountDecisionLogs returns the number of entries matching the filter.
	CountDecisionLogs(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeDecisionLogs removes entries created before the given time.
	PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error)
}
