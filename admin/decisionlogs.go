package admin

import (
	"context"
	"time"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
)

// GetDecisionLog returns one decision log entry.
func (s *Service) GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	e, err := s.store.GetDecisionLog(ctx, logID)
	if err != nil {
		return nil, storeErr(err, portcullis.ErrDecisionLogNotFound)
	}
	return e, nil
}

// ListDecisionLogs returns one page of decision log entries, newest first,
// and the unpaged total.
func (s *Service) ListDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, int64, error) {
	list, err := s.store.ListDecisionLogs(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrDecisionLogNotFound)
	}
	total, err := s.store.CountDecisionLogs(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(err, portcullis.ErrDecisionLogNotFound)
	}
	return list, total, nil
}

// PurgeDecisionLogs removes entries older than before and returns how many
// were removed.
func (s *Service) PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.PurgeDecisionLogs(ctx, before)
	if err != nil {
		return 0, storeErr(err, portcullis.ErrDecisionLogNotFound)
	}
	s.logger.Info("decision logs purged", "before", before, "removed", n)
	return n, nil
}
