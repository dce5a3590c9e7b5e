// Package audit is a plugin that persists every decision as a decision log
// entry, so administrators can explain past outcomes.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/plugin"
)

var _ plugin.AfterAuthorize = (*Recorder)(nil)

// Recorder writes decision log entries from the after-authorize hook.
type Recorder struct {
	store      decisionlog.Store
	deniedOnly bool
	now        func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// DeniedOnly records denied decisions and skips grants.
func DeniedOnly() Option { return func(r *Recorder) { r.deniedOnly = true } }

// New creates a Recorder writing to s.
func New(s decisionlog.Store, opts ...Option) *Recorder {
	r := &Recorder{store: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements plugin.Plugin.
func (r *Recorder) Name() string { return "audit" }

// OnAfterAuthorize implements plugin.AfterAuthorize.
func (r *Recorder) OnAfterAuthorize(ctx context.Context, actorID string, req, result any) error {
	rq, ok := req.(*portcullis.Request)
	if !ok {
		return fmt.Errorf("audit: unexpected request type %T", req)
	}
	res, ok := result.(*portcullis.Result)
	if !ok {
		return fmt.Errorf("audit: unexpected result type %T", result)
	}
	if r.deniedOnly && res.Granted {
		return nil
	}

	e := &decisionlog.Entry{
		ID:         id.NewDecisionLogID(),
		ActorID:    actorID,
		Module:     string(rq.Module),
		Action:     string(rq.Action),
		Granted:    res.Granted,
		Reason:     string(res.Reason),
		Detail:     res.Detail,
		EvalTimeNs: res.EvalTimeNs,
		CreatedAt:  r.now().UTC(),
	}
	if rq.Resource != nil {
		e.ResourceType = rq.Resource.Type
		e.ResourceID = rq.Resource.ID
	}
	if err := r.store.CreateDecisionLog(ctx, e); err != nil {
		return fmt.Errorf("audit: record decision: %w", err)
	}
	return nil
}
